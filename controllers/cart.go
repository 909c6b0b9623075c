package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"go-marketplace/apperr"
	"go-marketplace/models"
	"go-marketplace/pricing"
	"go-marketplace/repository"
	"go-marketplace/utils"
)

// CartBody is the "cart" member of a cart response.
type CartBody struct {
	Products []models.CartLine `json:"products"`
}

// CartResponse is returned by every cart endpoint.
type CartResponse struct {
	Success bool           `json:"success"`
	Cart    CartBody       `json:"cart"`
	Summary pricing.Totals `json:"summary"`
}

// CartController handles cart-related requests
type CartController struct {
	Carts    repository.CartRepository
	Products repository.ProductCatalog
	Pricing  pricing.Config
	Log      *zap.Logger
}

// NewCartController creates a new CartController
func NewCartController(store *repository.Store, cfg pricing.Config, log *zap.Logger) *CartController {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartController{Carts: store.Carts, Products: store.Products, Pricing: cfg, Log: log}
}

func (cc *CartController) respond(w http.ResponseWriter, cart models.Cart) {
	lines := cart.Products
	if lines == nil {
		lines = []models.CartLine{}
	}
	utils.WriteJSON(w, http.StatusOK, CartResponse{
		Success: true,
		Cart:    CartBody{Products: lines},
		Summary: pricing.Compute(lines, cc.Pricing, pricing.Options{}),
	})
}

// GetCart retrieves the user's cart
func (cc *CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		utils.WriteError(w, cc.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	cart, err := cc.Carts.GetCart(ctx, actor.ID)
	if err != nil {
		utils.WriteError(w, cc.Log, err)
		return
	}
	cc.respond(w, cart)
}

// UpdateCart applies one add, update or remove to the user's cart
func (cc *CartController) UpdateCart(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		utils.WriteError(w, cc.Log, err)
		return
	}
	var m models.CartMutation
	if err := decodeBody(r, &m); err != nil {
		utils.WriteError(w, cc.Log, err)
		return
	}
	if m.ProductID.IsZero() {
		utils.WriteError(w, cc.Log, apperr.Validation("productId", "productId is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var product models.Product
	if m.Action != models.CartActionRemove {
		if product, err = cc.Products.FindProduct(ctx, m.ProductID); err != nil {
			utils.WriteError(w, cc.Log, err)
			return
		}
	}

	cart, err := cc.Carts.UpdateCart(ctx, actor.ID, func(c *models.Cart) error {
		if err := applyMutation(c, m, product); err != nil {
			return err
		}
		c.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		cc.Log.Info("cart mutation rejected",
			zap.String("user_id", actor.ID.String()),
			zap.String("action", string(m.Action)),
			zap.String("line", m.Key().String()),
			zap.Error(err))
		utils.WriteError(w, cc.Log, err)
		return
	}
	cc.respond(w, cart)
}

// ClearCart empties the user's cart
func (cc *CartController) ClearCart(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		utils.WriteError(w, cc.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := cc.Carts.ClearCart(ctx, actor.ID); err != nil {
		utils.WriteError(w, cc.Log, err)
		return
	}
	cc.respond(w, models.Cart{UserID: actor.ID})
}

// applyMutation changes cart in place. Prices always come from the catalogue
// record, never from the request.
func applyMutation(cart *models.Cart, m models.CartMutation, p models.Product) error {
	key := m.Key()
	i := cart.Find(key)

	switch m.Action {
	case models.CartActionAdd:
		qty := m.Quantity
		if qty == 0 {
			qty = 1
		}
		if qty < 0 {
			return apperr.Validation("quantity", "quantity must be positive")
		}
		if i >= 0 {
			qty += cart.Products[i].Quantity
		}
		if err := models.ValidateQuantity(qty); err != nil {
			return err
		}
		if err := checkStock(p, qty); err != nil {
			return err
		}
		line := lineFor(p, key, qty)
		if i >= 0 {
			cart.Products[i] = line
		} else {
			cart.Products = append(cart.Products, line)
		}
	case models.CartActionUpdate:
		if err := models.ValidateQuantity(m.Quantity); err != nil {
			return err
		}
		if i < 0 {
			return apperr.NotFound("item is not in the cart")
		}
		if err := checkStock(p, m.Quantity); err != nil {
			return err
		}
		cart.Products[i] = lineFor(p, key, m.Quantity)
	case models.CartActionRemove:
		if i >= 0 {
			cart.Products = append(cart.Products[:i], cart.Products[i+1:]...)
		}
	default:
		return apperr.Validation("action", fmt.Sprintf("unknown cart action %q", m.Action))
	}
	return nil
}

func checkStock(p models.Product, qty int) error {
	if p.Stock < qty {
		return apperr.Conflictf("Insufficient stock for product: %s (only %d left)", p.Title, p.Stock)
	}
	return nil
}

func lineFor(p models.Product, key models.LineKey, qty int) models.CartLine {
	return models.CartLine{
		ProductID:    key.ProductID,
		Title:        p.Title,
		VariantColor: key.Color,
		Size:         key.Size,
		Quantity:     qty,
		UnitPrice:    p.Price,
		UnitMrp:      p.Mrp,
	}
}
