package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"go-marketplace/apperr"
	"go-marketplace/models"
	"go-marketplace/repository"
	"go-marketplace/utils"
)

// AddressListResponse is returned by every address endpoint: always the full
// list, never a partial patch.
type AddressListResponse struct {
	Success   bool             `json:"success"`
	Addresses []models.Address `json:"addresses"`
}

// AddressController handles the customer address book
type AddressController struct {
	Addresses repository.AddressRepository
	Log       *zap.Logger
}

// NewAddressController creates a new AddressController
func NewAddressController(addresses repository.AddressRepository, log *zap.Logger) *AddressController {
	if log == nil {
		log = zap.NewNop()
	}
	return &AddressController{Addresses: addresses, Log: log}
}

// addressInput is the body of POST and PUT.
type addressInput struct {
	models.Address
	IsDefault bool `json:"isDefault"`
}

// owner resolves the {userId} path variable and checks the caller may act
// on it.
func (ac *AddressController) owner(r *http.Request) (models.ID, error) {
	actor, err := currentActor(r)
	if err != nil {
		return "", err
	}
	userID := models.NormalizeID(mux.Vars(r)["userId"])
	if userID != actor.ID && !actor.IsAdmin() {
		return "", apperr.Forbidden("you may only manage your own addresses")
	}
	return userID, nil
}

func (ac *AddressController) respond(w http.ResponseWriter, status int, list []models.Address, err error) {
	if err != nil {
		utils.WriteError(w, ac.Log, err)
		return
	}
	if list == nil {
		list = []models.Address{}
	}
	utils.WriteJSON(w, status, AddressListResponse{Success: true, Addresses: list})
}

// GetAddresses lists the user's addresses
func (ac *AddressController) GetAddresses(w http.ResponseWriter, r *http.Request) {
	userID, err := ac.owner(r)
	if err != nil {
		utils.WriteError(w, ac.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	list, err := ac.Addresses.ListAddresses(ctx, userID)
	ac.respond(w, http.StatusOK, list, err)
}

// AddAddress saves a new address
func (ac *AddressController) AddAddress(w http.ResponseWriter, r *http.Request) {
	userID, err := ac.owner(r)
	if err != nil {
		utils.WriteError(w, ac.Log, err)
		return
	}
	var in addressInput
	if err := decodeBody(r, &in); err != nil {
		utils.WriteError(w, ac.Log, err)
		return
	}
	a := in.Address
	if err := models.Validate(a); err != nil {
		utils.WriteError(w, ac.Log, err)
		return
	}
	a.ID = models.NewID()
	a.CreatedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	list, err := ac.Addresses.AddAddress(ctx, userID, a, in.IsDefault)
	ac.respond(w, http.StatusCreated, list, err)
}

// UpdateAddress edits an address in place
func (ac *AddressController) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	userID, err := ac.owner(r)
	if err != nil {
		utils.WriteError(w, ac.Log, err)
		return
	}
	var in addressInput
	if err := decodeBody(r, &in); err != nil {
		utils.WriteError(w, ac.Log, err)
		return
	}
	a := in.Address
	a.ID = models.NormalizeID(mux.Vars(r)["addressId"])
	if err := models.Validate(a); err != nil {
		utils.WriteError(w, ac.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	list, err := ac.Addresses.UpdateAddress(ctx, userID, a)
	if err == nil && in.IsDefault {
		list, err = ac.Addresses.SetDefault(ctx, userID, a.ID)
	}
	ac.respond(w, http.StatusOK, list, err)
}

// DeleteAddress removes an address
func (ac *AddressController) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	userID, err := ac.owner(r)
	if err != nil {
		utils.WriteError(w, ac.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	list, err := ac.Addresses.DeleteAddress(ctx, userID, models.NormalizeID(mux.Vars(r)["addressId"]))
	ac.respond(w, http.StatusOK, list, err)
}

// SetDefaultAddress makes one address the default
func (ac *AddressController) SetDefaultAddress(w http.ResponseWriter, r *http.Request) {
	userID, err := ac.owner(r)
	if err != nil {
		utils.WriteError(w, ac.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	list, err := ac.Addresses.SetDefault(ctx, userID, models.NormalizeID(mux.Vars(r)["addressId"]))
	ac.respond(w, http.StatusOK, list, err)
}
