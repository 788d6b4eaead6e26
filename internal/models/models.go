package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"        json:"id"`
	Username     string    `gorm:"size:150;uniqueIndex;not null"   json:"username"`
	Email        string    `gorm:"size:254;uniqueIndex;not null"   json:"email"`
	FirstName    string    `gorm:"size:150"                        json:"first_name"`
	LastName     string    `gorm:"size:150"                        json:"last_name"`
	PasswordHash string    `gorm:"not null"                        json:"-"`
	Role         Role      `gorm:"size:10;not null;default:user"   json:"role"`
	Address      string    `gorm:"size:255"                        json:"address"`
	City         string    `gorm:"size:100"                        json:"city"`
	PostalCode   string    `gorm:"size:20"                         json:"postal_code"`
	Phone        string    `gorm:"size:20"                         json:"phone"`
	CreatedAt    time.Time `                                       json:"date_joined"`
	UpdatedAt    time.Time `                                       json:"updated_at"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"                   json:"id"`
	UserID    uint      `gorm:"index;not null"               json:"user_id"`
	JTI       string    `gorm:"size:64;uniqueIndex;not null" json:"jti"`
	TokenHash string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null"                     json:"expires_at"`
	Revoked   bool      `gorm:"not null;default:false"       json:"revoked"`
	CreatedAt time.Time `                                    json:"created_at"`
}

type Book struct {
	ID              uint            `gorm:"primaryKey;autoIncrement"   json:"id"`
	Title           string          `gorm:"size:200;not null;index"    json:"title"`
	Author          string          `gorm:"size:100;not null;index"    json:"author"`
	Price           decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	Description     string          `gorm:"type:text"                  json:"description"`
	PublicationDate *time.Time      `gorm:"type:date"                  json:"publication_date,omitempty"`
	ISBN            string          `gorm:"size:20"                    json:"isbn"`
	CreatedAt       time.Time       `gorm:"index"                      json:"created_at"`
	UpdatedAt       time.Time       `                                  json:"updated_at"`
}

type Cart struct {
	ID        uint       `gorm:"primaryKey;autoIncrement"     json:"id"`
	UserID    uint       `gorm:"uniqueIndex;not null"         json:"user_id"`
	User      *User      `gorm:"constraint:OnDelete:CASCADE"  json:"-"`
	Items     []CartItem `gorm:"constraint:OnDelete:CASCADE"  json:"items"`
	CreatedAt time.Time  `                                    json:"created_at"`
	UpdatedAt time.Time  `                                    json:"updated_at"`
}

// TotalPrice expects Items to be loaded with their Book.
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for i := range c.Items {
		total = total.Add(c.Items[i].Subtotal())
	}
	return total
}

func (c *Cart) TotalQuantity() int {
	n := 0
	for i := range c.Items {
		n += c.Items[i].Quantity
	}
	return n
}

type CartItem struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"                json:"id"`
	CartID    uint      `gorm:"not null;uniqueIndex:idx_cart_book"      json:"cart_id"`
	BookID    uint      `gorm:"not null;uniqueIndex:idx_cart_book"      json:"book_id"`
	Book      *Book     `gorm:"constraint:OnDelete:CASCADE"             json:"book,omitempty"`
	Quantity  int       `gorm:"not null;default:1;check:quantity>0"     json:"quantity"`
	CreatedAt time.Time `                                               json:"created_at"`
	UpdatedAt time.Time `                                               json:"updated_at"`
}

func (ci *CartItem) Subtotal() decimal.Decimal {
	if ci.Book == nil {
		return decimal.Zero
	}
	return ci.Book.Price.Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

type Order struct {
	ID              uint            `gorm:"primaryKey;autoIncrement"          json:"id"`
	UserID          uint            `gorm:"not null;index"                    json:"user_id"`
	User            *User           `gorm:"constraint:OnDelete:CASCADE"       json:"-"`
	TotalPrice      decimal.Decimal `gorm:"type:numeric(10,2);not null"       json:"total_price"`
	Status          OrderStatus     `gorm:"size:20;not null;default:pending;index" json:"status"`
	ShippingAddress string          `gorm:"type:text;not null"                json:"shipping_address"`
	Phone           string          `gorm:"size:20;not null"                  json:"phone"`
	Notes           string          `gorm:"type:text"                         json:"notes,omitempty"`
	Items           []OrderItem     `gorm:"constraint:OnDelete:CASCADE"       json:"items"`
	CreatedAt       time.Time       `gorm:"index"                             json:"created_at"`
	UpdatedAt       time.Time       `                                         json:"updated_at"`
}

func (o *Order) TotalItems() int {
	n := 0
	for i := range o.Items {
		n += o.Items[i].Quantity
	}
	return n
}

type OrderItem struct {
	ID       uint            `gorm:"primaryKey;autoIncrement"       json:"id"`
	OrderID  uint            `gorm:"not null;index"                 json:"order_id"`
	BookID   uint            `gorm:"not null;index"                 json:"book_id"`
	Book     *Book           `gorm:"constraint:OnDelete:RESTRICT"   json:"book,omitempty"`
	Quantity int             `gorm:"not null;check:quantity>0"      json:"quantity"`
	Price    decimal.Decimal `gorm:"type:numeric(10,2);not null"    json:"price"`
}

func (oi *OrderItem) Subtotal() decimal.Decimal {
	return oi.Price.Mul(decimal.NewFromInt(int64(oi.Quantity)))
}

// All lists every table in dependency order for migrations.
func All() []any {
	return []any{
		&User{},
		&RefreshToken{},
		&Book{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
	}
}
