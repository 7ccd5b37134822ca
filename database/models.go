package database

import "time"

// Transaction is a sale of one product in one store.
type Transaction struct {
	TransactionID   int       `gorm:"column:transaction_id;primaryKey;autoIncrement;comment:Unique identifier for each transaction"`
	TransactionDate time.Time `gorm:"column:transaction_date;comment:Date when the transaction occurred"`
	TransactionTime string    `gorm:"column:transaction_time;type:time;comment:Time when the transaction occurred"`
	TransactionQty  int       `gorm:"column:transaction_qty;comment:Quantity of products sold in this transaction"`
	StoreID         int       `gorm:"column:store_id;comment:Foreign key reference to the store where transaction occurred"`
	ProductID       int       `gorm:"column:product_id;comment:Foreign key reference to the product sold"`
	UnitPrice       float64   `gorm:"column:unit_price;comment:Price per unit of the product at time of transaction"`
}

func (Transaction) TableName() string    { return "transactions_t" }
func (Transaction) TableComment() string { return "Transaction records for all store sales" }

// Product is an entry of the product catalog.
type Product struct {
	ProductID   int    `gorm:"column:product_id;primaryKey;autoIncrement;comment:Unique identifier for each product"`
	ProductName string `gorm:"column:product_name;comment:Name of the product"`
}

func (Product) TableName() string    { return "products_t" }
func (Product) TableComment() string { return "Product catalog with product information" }

// Store is a shop location.
type Store struct {
	StoreID   int    `gorm:"column:store_id;primaryKey;autoIncrement;comment:Unique identifier for each store"`
	StoreName string `gorm:"column:store_name;comment:Name of the store"`
	City      string `gorm:"column:city;comment:City where the store is located"`
	Address   string `gorm:"column:address;comment:Street address of the store"`
	Manager   string `gorm:"column:manager;comment:Name of the store manager"`
}

func (Store) TableName() string    { return "stores_t" }
func (Store) TableComment() string { return "Store locations with manager and address details" }

// Nutrition holds the nutritional facts of a product.
type Nutrition struct {
	ProductID int `gorm:"column:product_id;primaryKey;autoIncrement;comment:Unique identifier linking to product"`
	Calories  int `gorm:"column:calories;comment:Calorie content per serving"`
	Fat       int `gorm:"column:fat;comment:Fat content in grams per serving"`
	Carb      int `gorm:"column:carb;comment:Carbohydrate content in grams per serving"`
	Fiber     int `gorm:"column:fiber;comment:Fiber content in grams per serving"`
	Sodium    int `gorm:"column:sodium;comment:Sodium content in milligrams per serving"`
}

func (Nutrition) TableName() string    { return "nutritions_t" }
func (Nutrition) TableComment() string { return "Nutritional facts and values for each product" }

// SessionTrace is the persisted form of a session record. The JSON columns
// hold the encoded snapshots and final state.
type SessionTrace struct {
	SessionID      string    `gorm:"column:session_id;primaryKey;size:36;comment:Unique identifier for each session"`
	Request        string    `gorm:"column:request;type:text;comment:User request that started the session"`
	Status         string    `gorm:"column:status;size:16;index;comment:Session outcome"`
	Error          string    `gorm:"column:error;type:text;comment:Failure marker of a failed session"`
	SessionHistory string    `gorm:"column:session_history;type:text;comment:History of the session"`
	FinalState     string    `gorm:"column:final_state;type:text;comment:State after the last step"`
	StartedAt      time.Time `gorm:"column:started_at;comment:Session start"`
	FinishedAt     time.Time `gorm:"column:finished_at;comment:Session end"`
}

func (SessionTrace) TableName() string    { return "service__session_tracing_t" }
func (SessionTrace) TableComment() string { return "Technical table for agent tracing." }

// Models returns every table of the schema in creation order.
func Models() []any {
	return []any{&Transaction{}, &Product{}, &Store{}, &Nutrition{}, &SessionTrace{}}
}

// AnalyticsModels returns the tables agents may query.
func AnalyticsModels() []any {
	return []any{&Transaction{}, &Product{}, &Store{}, &Nutrition{}}
}
