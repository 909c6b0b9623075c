package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go-marketplace/models"
	"go-marketplace/pricing"
	"go-marketplace/views"
)

// CartSnapshot is the server's view of the cart after a request.
type CartSnapshot struct {
	Lines   []models.CartLine
	Summary pricing.Totals
}

type cartResponse struct {
	Cart struct {
		Products []models.CartLine `json:"products"`
	} `json:"cart"`
	Summary pricing.Totals `json:"summary"`
}

func (r cartResponse) snapshot() CartSnapshot {
	lines := r.Cart.Products
	if lines == nil {
		lines = []models.CartLine{}
	}
	return CartSnapshot{Lines: lines, Summary: r.Summary}
}

// GetCart fetches the stored cart.
func (c *Client) GetCart(ctx context.Context) (CartSnapshot, error) {
	var res cartResponse
	if err := c.do(ctx, http.MethodGet, "/cart", nil, nil, &res); err != nil {
		return CartSnapshot{}, err
	}
	return res.snapshot(), nil
}

// MutateCart sends one add, update or remove.
func (c *Client) MutateCart(ctx context.Context, m models.CartMutation) (CartSnapshot, error) {
	var res cartResponse
	if err := c.do(ctx, http.MethodPost, "/cart", nil, m, &res); err != nil {
		return CartSnapshot{}, err
	}
	return res.snapshot(), nil
}

// ClearCart empties the stored cart.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/cart", nil, nil, nil)
}

type addressList struct {
	Addresses []models.Address `json:"addresses"`
}

func addressPath(userID models.ID, rest ...string) string {
	p := "/user/address/" + url.PathEscape(userID.String())
	for _, r := range rest {
		p += "/" + url.PathEscape(r)
	}
	return p
}

type addressInput struct {
	models.Address
	IsDefault bool `json:"isDefault"`
}

func (c *Client) addressCall(ctx context.Context, method, path string, body interface{}) ([]models.Address, error) {
	var res addressList
	if err := c.do(ctx, method, path, nil, body, &res); err != nil {
		return nil, err
	}
	if res.Addresses == nil {
		res.Addresses = []models.Address{}
	}
	return res.Addresses, nil
}

func (c *Client) ListAddresses(ctx context.Context, userID models.ID) ([]models.Address, error) {
	return c.addressCall(ctx, http.MethodGet, addressPath(userID), nil)
}

func (c *Client) AddAddress(ctx context.Context, userID models.ID, a models.Address, makeDefault bool) ([]models.Address, error) {
	return c.addressCall(ctx, http.MethodPost, addressPath(userID), addressInput{Address: a, IsDefault: makeDefault})
}

func (c *Client) UpdateAddress(ctx context.Context, userID models.ID, a models.Address, makeDefault bool) ([]models.Address, error) {
	return c.addressCall(ctx, http.MethodPut, addressPath(userID, a.ID.String()), addressInput{Address: a, IsDefault: makeDefault})
}

func (c *Client) DeleteAddress(ctx context.Context, userID, addressID models.ID) ([]models.Address, error) {
	return c.addressCall(ctx, http.MethodDelete, addressPath(userID, addressID.String()), nil)
}

func (c *Client) SetDefaultAddress(ctx context.Context, userID, addressID models.ID) ([]models.Address, error) {
	return c.addressCall(ctx, http.MethodPatch, addressPath(userID, addressID.String(), "default"), nil)
}

// CreateOrder submits an order. The returned order carries the display code.
func (c *Client) CreateOrder(ctx context.Context, req models.OrderRequest) (models.Order, error) {
	var res struct {
		Order models.Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders", nil, req, &res); err != nil {
		return models.Order{}, err
	}
	return res.Order, nil
}

func filterQuery(f views.Filter) url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status.String())
	}
	if !f.From.IsZero() {
		q.Set("from", f.From.Format(time.RFC3339))
	}
	if !f.To.IsZero() {
		q.Set("to", f.To.Format(time.RFC3339))
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	return q
}

// ListOrders returns the caller's own orders.
func (c *Client) ListOrders(ctx context.Context, f views.Filter) ([]models.Order, error) {
	var res struct {
		Orders []models.Order `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders", filterQuery(f), nil, &res); err != nil {
		return nil, err
	}
	return res.Orders, nil
}

// GetOrder fetches an order by storage id or display code. Sellers get only
// their own lines back.
func (c *Client) GetOrder(ctx context.Context, id string) (models.Order, error) {
	var res struct {
		Order models.Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, nil, &res); err != nil {
		return models.Order{}, err
	}
	return res.Order, nil
}

// SellerOrders is the seller dashboard listing.
type SellerOrders struct {
	Orders []views.SellerOrder `json:"orders"`
	Stats  views.Stats         `json:"stats"`
}

func (c *Client) SellerOrders(ctx context.Context, f views.Filter) (SellerOrders, error) {
	var res SellerOrders
	err := c.do(ctx, http.MethodGet, "/seller/orders", filterQuery(f), nil, &res)
	return res, err
}

// AdminOrders is the admin dashboard listing.
type AdminOrders struct {
	Orders []views.AdminOrder `json:"orders"`
	Stats  views.Stats        `json:"stats"`
}

func (c *Client) AdminOrders(ctx context.Context, f views.Filter) (AdminOrders, error) {
	var res AdminOrders
	err := c.do(ctx, http.MethodGet, "/admin/orders", filterQuery(f), nil, &res)
	return res, err
}

// UpdateLineStatus proposes a new status for the seller's lines of productID.
// The response is the order as stored after the write.
func (c *Client) UpdateLineStatus(ctx context.Context, orderID string, productID models.ID, status models.Status) (views.SellerOrder, error) {
	var res struct {
		Order views.SellerOrder `json:"order"`
	}
	path := "/orders/" + url.PathEscape(orderID) + "/products/" + url.PathEscape(productID.String()) + "/status"
	err := c.do(ctx, http.MethodPatch, path, nil, map[string]string{"productStatus": status.String()}, &res)
	return res.Order, err
}

// UpdateOrderStatus sets the aggregate status with an optional audit note.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status models.Status, note string) (views.AdminOrder, error) {
	var res struct {
		Order views.AdminOrder `json:"order"`
	}
	body := map[string]string{"status": status.String(), "note": note}
	err := c.do(ctx, http.MethodPatch, "/orders/"+url.PathEscape(orderID)+"/status", nil, body, &res)
	return res.Order, err
}

func (c *Client) UpdatePaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus) (views.AdminOrder, error) {
	var res struct {
		Order views.AdminOrder `json:"order"`
	}
	body := map[string]string{"paymentStatus": string(status)}
	err := c.do(ctx, http.MethodPatch, "/orders/"+url.PathEscape(orderID)+"/payment", nil, body, &res)
	return res.Order, err
}

// DeleteOrder hard-deletes an order; confirm must be its display code.
func (c *Client) DeleteOrder(ctx context.Context, orderID, confirm string) error {
	return c.do(ctx, http.MethodDelete, "/orders/"+url.PathEscape(orderID), url.Values{"confirm": {confirm}}, nil, nil)
}

func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	var res struct {
		Products []models.Product `json:"products"`
	}
	err := c.do(ctx, http.MethodGet, "/products", nil, nil, &res)
	return res.Products, err
}
