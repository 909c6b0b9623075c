package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"go-marketplace/models"
	"go-marketplace/repository"
	"go-marketplace/utils"
)

// ProductController serves read-only catalogue lookups
type ProductController struct {
	Products repository.ProductCatalog
	Log      *zap.Logger
}

// NewProductController creates a new ProductController
func NewProductController(products repository.ProductCatalog, log *zap.Logger) *ProductController {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductController{Products: products, Log: log}
}

// GetProducts lists the catalogue
func (pc *ProductController) GetProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	products, err := pc.Products.ListProducts(ctx)
	if err != nil {
		utils.WriteError(w, pc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "products": products})
}

// GetProductByID retrieves a single product
func (pc *ProductController) GetProductByID(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	product, err := pc.Products.FindProduct(ctx, models.NormalizeID(mux.Vars(r)["id"]))
	if err != nil {
		utils.WriteError(w, pc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "product": product})
}
