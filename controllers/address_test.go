package controllers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-marketplace/controllers"
	"go-marketplace/models"
)

func addressBody(city string, makeDefault bool) map[string]interface{} {
	return map[string]interface{}{
		"label":     "home",
		"address":   "12 MG Road",
		"city":      city,
		"state":     "MH",
		"pincode":   "411001",
		"mobile":    "9876543210",
		"isDefault": makeDefault,
	}
}

func defaults(list []models.Address) []models.ID {
	var ids []models.ID
	for _, a := range list {
		if a.IsDefault {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func TestAddress_SingleDefaultAcrossOperations(t *testing.T) {
	h := newHarness(t)
	tok := h.token("u1", models.RoleCustomer)
	var res controllers.AddressListResponse

	rec := h.do(http.MethodPost, "/user/address/u1", tok, addressBody("Pune", false))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(t, rec, &res)
	require.Len(t, res.Addresses, 1)
	assert.True(t, res.Addresses[0].IsDefault, "first address becomes the default")
	first := res.Addresses[0].ID

	decode(t, h.do(http.MethodPost, "/user/address/u1", tok, addressBody("Goa", true)), &res)
	require.Len(t, res.Addresses, 2)
	second := res.Addresses[1].ID
	assert.Equal(t, []models.ID{second}, defaults(res.Addresses))

	decode(t, h.do(http.MethodPost, "/user/address/u1", tok, addressBody("Agra", false)), &res)
	assert.Equal(t, []models.ID{second}, defaults(res.Addresses))

	decode(t, h.do(http.MethodPatch, "/user/address/u1/"+first.String()+"/default", tok, nil), &res)
	assert.Equal(t, []models.ID{first}, defaults(res.Addresses))

	decode(t, h.do(http.MethodPut, "/user/address/u1/"+second.String(), tok, addressBody("Panaji", true)), &res)
	assert.Equal(t, []models.ID{second}, defaults(res.Addresses))
	assert.Equal(t, "Panaji", res.Addresses[1].City)

	decode(t, h.do(http.MethodDelete, "/user/address/u1/"+second.String(), tok, nil), &res)
	require.Len(t, res.Addresses, 2)
	assert.Len(t, defaults(res.Addresses), 1, "deleting the default promotes another")
}

func TestAddress_Validation(t *testing.T) {
	h := newHarness(t)
	tok := h.token("u1", models.RoleCustomer)

	body := addressBody("Pune", false)
	body["pincode"] = "4110"
	rec := h.do(http.MethodPost, "/user/address/u1", tok, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "pincode", errorOf(t, rec).Field)

	body = addressBody("Pune", false)
	body["mobile"] = "98765"
	rec = h.do(http.MethodPost, "/user/address/u1", tok, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "mobile", errorOf(t, rec).Field)
}

func TestAddress_OwnerOnly(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/user/address/u1", h.token("u1", models.RoleCustomer), addressBody("Pune", false)).Code)

	rec := h.do(http.MethodGet, "/user/address/u1", h.token("u2", models.RoleCustomer), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var res controllers.AddressListResponse
	rec = h.do(http.MethodGet, "/user/address/u1", h.token("a1", models.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &res)
	assert.Len(t, res.Addresses, 1)
}

func TestAddress_UnknownIDs(t *testing.T) {
	h := newHarness(t)
	tok := h.token("u1", models.RoleCustomer)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/user/address/u1/zz", tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPatch, "/user/address/u1/zz/default", tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPut, "/user/address/u1/zz", tok, addressBody("Pune", false)).Code)
}
