package models

// Product is the catalogue record the cart and order endpoints resolve
// prices, ownership and stock from.
type Product struct {
	ID       ID     `bson:"_id" json:"id"`
	SellerID ID     `bson:"seller_id" json:"sellerId"`
	Title    string `bson:"title" json:"title"`
	Price    Money  `bson:"price" json:"price"`
	Mrp      Money  `bson:"mrp" json:"mrp"`
	Stock    int    `bson:"stock" json:"stock"`
}
