package models

import "time"

// Game is the closed set of card games a product can belong to
type Game string

const (
	GamePokemon Game = "pokemon"
	GameYugioh  Game = "yugioh"
	GameMagic   Game = "magic"
	GameOther   Game = "other"
)

// ProductType is the closed set of product kinds
type ProductType string

const (
	ProductTypeBooster ProductType = "booster"
	ProductTypeSingles ProductType = "singles"
	ProductTypeBundle  ProductType = "bundle"
	ProductTypeOther   ProductType = "other"
)

// Store represents a shop that sells products. Name is the natural key.
type Store struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	WebsiteURL string `db:"website_url" json:"website_url"`
}

// Product represents a catalog entry. MinPrice only ever decreases once set.
type Product struct {
	ID          int64       `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	ImgURL      *string     `db:"img_url" json:"img_url"`
	MinPrice    *int64      `db:"min_price" json:"min_price"`
	Game        Game        `db:"game" json:"game"`
	Edition     *string     `db:"edition" json:"edition"`
	Language    *string     `db:"language" json:"language"`
	Description *string     `db:"description" json:"description"`
	Condition   *string     `db:"condition" json:"condition"`
	ProductType ProductType `db:"product_type" json:"product_type"`
}

// Price is an immutable price observation of a product at a store
type Price struct {
	ID         int64     `db:"id" json:"id"`
	ProductID  int64     `db:"product_id" json:"product_id"`
	StoreID    int64     `db:"store_id" json:"store_id"`
	Price      int64     `db:"price" json:"price"`
	URL        string    `db:"url" json:"url"`
	ScrappedAt time.Time `db:"scrapped_at" json:"scrapped_at"`
}

// PriceWithStore is a price row joined with the store it was observed at
type PriceWithStore struct {
	ID         int64     `db:"id" json:"id"`
	ProductID  int64     `db:"product_id" json:"product_id"`
	Price      int64     `db:"price" json:"price"`
	URL        string    `db:"url" json:"url"`
	ScrappedAt time.Time `db:"scrapped_at" json:"scrapped_at"`
	Store      Store     `db:"store" json:"store"`
}

// Comment is user text attached to a product
type Comment struct {
	ID        int64     `db:"id" json:"id"`
	User      string    `db:"user" json:"user"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Text      string    `db:"text" json:"text"`
	Date      time.Time `db:"date" json:"date"`
}

// Review is a 1..5 rating of a store. At most one per (store, user).
type Review struct {
	ID      int64     `db:"id" json:"id"`
	User    string    `db:"user" json:"user"`
	StoreID int64     `db:"store_id" json:"store_id"`
	Rating  int       `db:"rating" json:"rating"`
	Date    time.Time `db:"date" json:"date"`
}

// ProductDetail is a product with its current price board and comments
type ProductDetail struct {
	Product
	Prices   []PriceWithStore `json:"prices"`
	Comments []Comment        `json:"comments"`
}

// ProductFilter holds the optional conjunctive filters for product search
type ProductFilter struct {
	Name        string
	MinPrice    *int64
	MaxPrice    *int64
	Game        *Game
	ProductType *ProductType
	Skip        int
	Limit       int
}

// Pagination bounds for product search
const (
	DefaultProductLimit = 100
	MaxProductLimit     = 1000
)

// ScrapperItem is one scraped (store, product, price, image) observation.
// Stock is accepted but not stored; min_price is always derived from prices.
type ScrapperItem struct {
	Price       int64       `json:"price"`
	Description *string     `json:"description,omitempty"`
	Language    *string     `json:"language,omitempty"`
	Stock       interface{} `json:"stock,omitempty"`
	Name        string      `json:"name"`
	URL         string      `json:"url"`
	Game        string      `json:"game"`
	Timestamp   string      `json:"timestamp"`
	Store       string      `json:"store"`
	ProductType string      `json:"product_type"`
	ImgURL      *string     `json:"img_url,omitempty"`
}

// BatchReport summarizes one batch ingestion call
type BatchReport struct {
	Message        string   `json:"message"`
	ProcessedCount int      `json:"processed_count"`
	TotalItems     int      `json:"total_items"`
	Errors         []string `json:"errors,omitempty"`
	ErrorCount     int      `json:"error_count,omitempty"`
}
