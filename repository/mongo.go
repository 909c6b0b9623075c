package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-marketplace/apperr"
	"go-marketplace/models"
)

// Collection names in the marketplace database.
const (
	ProductsCollection  = "products"
	CartsCollection     = "carts"
	AddressesCollection = "address_books"
	OrdersCollection    = "orders"
)

// NewMongoStore returns a Store backed by db.
func NewMongoStore(db *mongo.Database) *Store {
	return &Store{
		Products:  &MongoCatalog{coll: db.Collection(ProductsCollection)},
		Carts:     &MongoCarts{coll: db.Collection(CartsCollection)},
		Addresses: &MongoAddresses{coll: db.Collection(AddressesCollection)},
		Orders:    &MongoOrders{coll: db.Collection(OrdersCollection)},
	}
}

// EnsureIndexes creates the indexes the order queries rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(OrdersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "products.seller_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create order indexes: %w", err)
	}
	return nil
}

// idFilter matches a document stored under either a string id or the
// ObjectID the string encodes.
func idFilter(id models.ID) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id.String()); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{"_id": id}
}

func storageErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return apperr.Transient(op+" failed", err)
	}
	return apperr.Internal(op+" failed", err)
}

type MongoCatalog struct {
	coll *mongo.Collection
}

func (m *MongoCatalog) FindProduct(ctx context.Context, id models.ID) (models.Product, error) {
	var p models.Product
	err := m.coll.FindOne(ctx, idFilter(id)).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, apperr.NotFound("product not found")
	}
	if err != nil {
		return models.Product{}, storageErr("find product", err)
	}
	return p, nil
}

func (m *MongoCatalog) ListProducts(ctx context.Context) ([]models.Product, error) {
	cursor, err := m.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, storageErr("list products", err)
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, storageErr("decode products", err)
	}
	return products, nil
}

type MongoCarts struct {
	coll *mongo.Collection
}

func (m *MongoCarts) GetCart(ctx context.Context, userID models.ID) (models.Cart, error) {
	var cart models.Cart
	err := m.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Cart{UserID: userID, Products: []models.CartLine{}}, nil
	}
	if err != nil {
		return models.Cart{}, storageErr("find cart", err)
	}
	if cart.Products == nil {
		cart.Products = []models.CartLine{}
	}
	return cart, nil
}

// cartWriteAttempts bounds the compare-and-swap retries of UpdateCart.
const cartWriteAttempts = 5

func (m *MongoCarts) UpdateCart(ctx context.Context, userID models.ID, fn func(*models.Cart) error) (models.Cart, error) {
	for attempt := 0; attempt < cartWriteAttempts; attempt++ {
		cart, err := m.GetCart(ctx, userID)
		if err != nil {
			return models.Cart{}, err
		}
		if err := fn(&cart); err != nil {
			return models.Cart{}, err
		}
		prev := cart.Version
		cart.Version++

		// A missing cart has version 0: the upsert inserts it, and a racing
		// insert fails on the duplicate _id.
		res, err := m.coll.ReplaceOne(ctx, cartVersionFilter(userID, prev), cart, options.Replace().SetUpsert(true))
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return models.Cart{}, storageErr("save cart", err)
		}
		if res.MatchedCount == 0 && res.UpsertedCount == 0 {
			continue
		}
		return cart, nil
	}
	return models.Cart{}, apperr.Conflict("cart was changed by another request, please retry")
}

func cartVersionFilter(userID models.ID, version int64) bson.M {
	if version == 0 {
		return bson.M{"_id": userID, "version": bson.M{"$in": bson.A{0, nil}}}
	}
	return bson.M{"_id": userID, "version": version}
}

func (m *MongoCarts) ClearCart(ctx context.Context, userID models.ID) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
		return storageErr("clear cart", err)
	}
	return nil
}

type addressBookDoc struct {
	UserID    models.ID        `bson:"_id"`
	DefaultID models.ID        `bson:"default_id"`
	Addresses []models.Address `bson:"addresses"`
}

func (d addressBookDoc) list() []models.Address {
	b := addressBook{defaultID: d.DefaultID, addresses: d.Addresses}
	return b.list()
}

type MongoAddresses struct {
	coll *mongo.Collection
}

func (m *MongoAddresses) ListAddresses(ctx context.Context, userID models.ID) ([]models.Address, error) {
	var doc addressBookDoc
	err := m.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []models.Address{}, nil
	}
	if err != nil {
		return nil, storageErr("find addresses", err)
	}
	return doc.list(), nil
}

func (m *MongoAddresses) AddAddress(ctx context.Context, userID models.ID, a models.Address, makeDefault bool) ([]models.Address, error) {
	update := bson.M{"$push": bson.M{"addresses": a}}
	if makeDefault {
		update["$set"] = bson.M{"default_id": a.ID}
	}
	_, err := m.coll.UpdateOne(ctx, bson.M{"_id": userID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return nil, storageErr("add address", err)
	}
	if !makeDefault {
		// The first address of a book becomes its default.
		_, err = m.coll.UpdateOne(ctx,
			bson.M{"_id": userID, "default_id": bson.M{"$in": bson.A{"", nil}}},
			bson.M{"$set": bson.M{"default_id": a.ID}})
		if err != nil {
			return nil, storageErr("set first default", err)
		}
	}
	return m.ListAddresses(ctx, userID)
}

func (m *MongoAddresses) UpdateAddress(ctx context.Context, userID models.ID, a models.Address) ([]models.Address, error) {
	res, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": userID, "addresses._id": a.ID},
		bson.M{"$set": bson.M{
			"addresses.$.label":   a.Label,
			"addresses.$.address": a.AddressText,
			"addresses.$.city":    a.City,
			"addresses.$.state":   a.State,
			"addresses.$.pincode": a.Pincode,
			"addresses.$.mobile":  a.Mobile,
		}})
	if err != nil {
		return nil, storageErr("update address", err)
	}
	if res.MatchedCount == 0 {
		return nil, apperr.NotFound("address not found")
	}
	return m.ListAddresses(ctx, userID)
}

func (m *MongoAddresses) DeleteAddress(ctx context.Context, userID, addressID models.ID) ([]models.Address, error) {
	var doc addressBookDoc
	err := m.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": userID, "addresses._id": addressID},
		bson.M{"$pull": bson.M{"addresses": bson.M{"_id": addressID}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("address not found")
	}
	if err != nil {
		return nil, storageErr("delete address", err)
	}
	if doc.DefaultID == addressID {
		var next models.ID
		if n := len(doc.Addresses); n > 0 {
			next = doc.Addresses[n-1].ID
		}
		_, err = m.coll.UpdateOne(ctx,
			bson.M{"_id": userID, "default_id": addressID},
			bson.M{"$set": bson.M{"default_id": next}})
		if err != nil {
			return nil, storageErr("promote default", err)
		}
	}
	return m.ListAddresses(ctx, userID)
}

func (m *MongoAddresses) SetDefault(ctx context.Context, userID, addressID models.ID) ([]models.Address, error) {
	res, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": userID, "addresses._id": addressID},
		bson.M{"$set": bson.M{"default_id": addressID}})
	if err != nil {
		return nil, storageErr("set default address", err)
	}
	if res.MatchedCount == 0 {
		return nil, apperr.NotFound("address not found")
	}
	return m.ListAddresses(ctx, userID)
}

type MongoOrders struct {
	coll *mongo.Collection
}

func orderFilter(id models.ID) bson.M {
	return bson.M{"$or": bson.A{bson.M{"_id": id}, bson.M{"order_id": id.String()}}}
}

// lineStatusFilter matches the order only when sellerID owns productID and
// no line of productID belongs to anyone else.
func lineStatusFilter(orderID, productID, sellerID models.ID) bson.M {
	return bson.M{
		"_id": orderID,
		"$and": bson.A{
			bson.M{"products": bson.M{"$elemMatch": bson.M{"product_id": productID, "seller_id": sellerID}}},
			bson.M{"products": bson.M{"$not": bson.M{"$elemMatch": bson.M{"product_id": productID, "seller_id": bson.M{"$ne": sellerID}}}}},
		},
	}
}

func orderQueryFilter(q OrderQuery) bson.M {
	filter := bson.M{}
	if q.UserID != "" {
		filter["user_id"] = q.UserID
	}
	if q.SellerID != "" {
		filter["products.seller_id"] = q.SellerID
	}
	return filter
}

func (m *MongoOrders) InsertOrder(ctx context.Context, o models.Order) error {
	// $push needs an array, not null.
	if o.StatusHistory == nil {
		o.StatusHistory = []models.StatusEntry{}
	}
	_, err := m.coll.InsertOne(ctx, o)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.Conflict("order already exists")
	}
	if err != nil {
		return storageErr("insert order", err)
	}
	return nil
}

func (m *MongoOrders) FindOrder(ctx context.Context, id models.ID) (models.Order, error) {
	var o models.Order
	err := m.coll.FindOne(ctx, orderFilter(id)).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, apperr.NotFound("order not found")
	}
	if err != nil {
		return models.Order{}, storageErr("find order", err)
	}
	return o, nil
}

func (m *MongoOrders) ListOrders(ctx context.Context, q OrderQuery) ([]models.Order, error) {
	cursor, err := m.coll.Find(ctx, orderQueryFilter(q), options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, storageErr("list orders", err)
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, storageErr("decode orders", err)
	}
	return orders, nil
}

func (m *MongoOrders) SetLineStatus(ctx context.Context, orderID, productID, sellerID models.ID, status models.Status, at time.Time) error {
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"line.product_id": productID}},
	})
	res, err := m.coll.UpdateOne(ctx,
		lineStatusFilter(orderID, productID, sellerID),
		bson.M{"$set": bson.M{"products.$[line].product_status": status, "updated_at": at}},
		opts)
	if err != nil {
		return storageErr("update line status", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	o, err := m.FindOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if len(o.LinesFor(productID)) == 0 {
		return apperr.NotFound("product is not part of this order")
	}
	return apperr.Forbidden("you do not sell this product in this order")
}

func (m *MongoOrders) SetOrderStatus(ctx context.Context, orderID models.ID, entry models.StatusEntry) error {
	res, err := m.coll.UpdateOne(ctx, bson.M{"_id": orderID}, bson.M{
		"$set":  bson.M{"order_status": entry.Status, "updated_at": entry.At},
		"$push": bson.M{"status_history": entry},
	})
	if err != nil {
		return storageErr("update order status", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("order not found")
	}
	return nil
}

func (m *MongoOrders) SetPaymentStatus(ctx context.Context, orderID models.ID, status models.PaymentStatus, at time.Time) error {
	res, err := m.coll.UpdateOne(ctx, bson.M{"_id": orderID}, bson.M{
		"$set": bson.M{"payment_status": status, "updated_at": at},
	})
	if err != nil {
		return storageErr("update payment status", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("order not found")
	}
	return nil
}

func (m *MongoOrders) DeleteOrder(ctx context.Context, orderID models.ID) error {
	res, err := m.coll.DeleteOne(ctx, bson.M{"_id": orderID})
	if err != nil {
		return storageErr("delete order", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("order not found")
	}
	return nil
}
