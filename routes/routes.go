package routes

import (
	"github.com/gorilla/mux"

	"go-marketplace/controllers"
	"go-marketplace/middleware"
	"go-marketplace/models"
)

// Controllers groups the handlers the router dispatches to.
type Controllers struct {
	Products  *controllers.ProductController
	Carts     *controllers.CartController
	Addresses *controllers.AddressController
	Orders    *controllers.OrderController
}

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, c Controllers, jwtSecret []byte) {
	// Public routes
	router.HandleFunc("/products", c.Products.GetProducts).Methods("GET")
	router.HandleFunc("/products/{id}", c.Products.GetProductByID).Methods("GET")

	// Protected routes
	protected := router.PathPrefix("/").Subrouter()
	protected.Use(middleware.AuthMiddleware(jwtSecret))

	// Cart routes
	protected.HandleFunc("/cart", c.Carts.GetCart).Methods("GET")
	protected.HandleFunc("/cart", c.Carts.UpdateCart).Methods("POST")
	protected.HandleFunc("/cart", c.Carts.ClearCart).Methods("DELETE")

	// Address routes
	protected.HandleFunc("/user/address/{userId}", c.Addresses.GetAddresses).Methods("GET")
	protected.HandleFunc("/user/address/{userId}", c.Addresses.AddAddress).Methods("POST")
	protected.HandleFunc("/user/address/{userId}/{addressId}", c.Addresses.UpdateAddress).Methods("PUT")
	protected.HandleFunc("/user/address/{userId}/{addressId}", c.Addresses.DeleteAddress).Methods("DELETE")
	protected.HandleFunc("/user/address/{userId}/{addressId}/default", c.Addresses.SetDefaultAddress).Methods("PATCH")

	// Order routes
	protected.HandleFunc("/orders", c.Orders.CreateOrder).Methods("POST")
	protected.HandleFunc("/orders", c.Orders.GetOrders).Methods("GET")
	protected.HandleFunc("/orders/{id}", c.Orders.GetOrder).Methods("GET")

	// Seller routes
	seller := protected.NewRoute().Subrouter()
	seller.Use(middleware.RequireRole(models.RoleSeller))
	seller.HandleFunc("/seller/orders", c.Orders.GetSellerOrders).Methods("GET")
	seller.HandleFunc("/orders/{id}/products/{productId}/status", c.Orders.UpdateLineStatus).Methods("PATCH", "PUT")

	// Admin routes
	admin := protected.NewRoute().Subrouter()
	admin.Use(middleware.AdminMiddleware)
	admin.HandleFunc("/admin/orders", c.Orders.GetAdminOrders).Methods("GET")
	admin.HandleFunc("/orders/{id}/status", c.Orders.UpdateOrderStatus).Methods("PATCH")
	admin.HandleFunc("/orders/{id}/payment", c.Orders.UpdateOrderPaymentStatus).Methods("PATCH")
	admin.HandleFunc("/orders/{id}", c.Orders.DeleteOrder).Methods("DELETE")
}
