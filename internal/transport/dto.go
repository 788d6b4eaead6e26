package transport

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/service"
	"github.com/Skotchmaster/bookstore/internal/util"
)

const dateLayout = "2006-01-02"

type RegisterRequest struct {
	Username        string `json:"username"         validate:"required,max=150"`
	Email           string `json:"email"            validate:"required,email,max=254"`
	FirstName       string `json:"first_name"       validate:"max=150"`
	LastName        string `json:"last_name"        validate:"max=150"`
	Password        string `json:"password"         validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (r RegisterRequest) Input() service.RegisterInput {
	return service.RegisterInput{
		Username:        r.Username,
		Email:           r.Email,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Password:        r.Password,
		PasswordConfirm: r.PasswordConfirm,
	}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      uint      `json:"user_id"`
	Username    string    `json:"username"`
	IsAdmin     bool      `json:"is_admin"`
}

func NewLoginResponse(s *service.Session) LoginResponse {
	return LoginResponse{
		AccessToken: s.Tokens.AccessToken,
		ExpiresAt:   s.Tokens.AccessExp,
		UserID:      s.User.ID,
		Username:    s.User.Username,
		IsAdmin:     s.User.IsAdmin(),
	}
}

type ProfileRequest struct {
	Username   *string `json:"username"    validate:"omitempty,max=150"`
	Email      *string `json:"email"       validate:"omitempty,email,max=254"`
	FirstName  *string `json:"first_name"  validate:"omitempty,max=150"`
	LastName   *string `json:"last_name"   validate:"omitempty,max=150"`
	Address    *string `json:"address"     validate:"omitempty,max=255"`
	City       *string `json:"city"        validate:"omitempty,max=100"`
	PostalCode *string `json:"postal_code" validate:"omitempty,max=20"`
	Phone      *string `json:"phone"       validate:"omitempty,max=20"`
}

func (r ProfileRequest) Patch() service.ProfilePatch {
	return service.ProfilePatch{
		Username:   r.Username,
		Email:      r.Email,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Address:    r.Address,
		City:       r.City,
		PostalCode: r.PostalCode,
		Phone:      r.Phone,
	}
}

type CreateBookRequest struct {
	Title           string          `json:"title"            validate:"required,max=200"`
	Author          string          `json:"author"           validate:"required,max=100"`
	Price           decimal.Decimal `json:"price"`
	Description     string          `json:"description"`
	PublicationDate string          `json:"publication_date" validate:"omitempty,datetime=2006-01-02"`
	ISBN            string          `json:"isbn"             validate:"max=20"`
}

func (r CreateBookRequest) Input() (service.BookInput, error) {
	date, err := parseDate(r.PublicationDate)
	if err != nil {
		return service.BookInput{}, err
	}
	return service.BookInput{
		Title:           r.Title,
		Author:          r.Author,
		Price:           r.Price,
		Description:     r.Description,
		PublicationDate: date,
		ISBN:            r.ISBN,
	}, nil
}

type PatchBookRequest struct {
	Title           *string          `json:"title"            validate:"omitempty,max=200"`
	Author          *string          `json:"author"           validate:"omitempty,max=100"`
	Price           *decimal.Decimal `json:"price"`
	Description     *string          `json:"description"`
	PublicationDate *string          `json:"publication_date" validate:"omitempty,datetime=2006-01-02"`
	ISBN            *string          `json:"isbn"             validate:"omitempty,max=20"`
}

func (r PatchBookRequest) Patch() (service.BookPatch, error) {
	p := service.BookPatch{
		Title:       r.Title,
		Author:      r.Author,
		Price:       r.Price,
		Description: r.Description,
		ISBN:        r.ISBN,
	}
	if r.PublicationDate != nil {
		date, err := parseDate(*r.PublicationDate)
		if err != nil {
			return service.BookPatch{}, err
		}
		p.PublicationDate = date
	}
	return p, nil
}

type AddCartItemRequest struct {
	BookID uint `json:"book_id" validate:"required"`
}

// UpdateCartItemRequest takes any integer up to the per-line cap; zero or less removes the item.
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,max=999"`
}

type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"required"`
	Phone           string `json:"phone"            validate:"required,max=20"`
	Notes           string `json:"notes"            validate:"max=1000"`
}

func (r CheckoutRequest) Input() service.CheckoutInput {
	return service.CheckoutInput{
		ShippingAddress: r.ShippingAddress,
		Phone:           r.Phone,
		Notes:           r.Notes,
	}
}

type ListResponse[T any] struct {
	Data []T       `json:"data"`
	Meta util.Meta `json:"meta"`
}

type BookView struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Price           string    `json:"price"`
	Description     string    `json:"description"`
	PublicationDate string    `json:"publication_date,omitempty"`
	ISBN            string    `json:"isbn,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func NewBookView(b *models.Book) BookView {
	v := BookView{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Price:       b.Price.StringFixed(2),
		Description: b.Description,
		ISBN:        b.ISBN,
		CreatedAt:   b.CreatedAt,
	}
	if b.PublicationDate != nil {
		v.PublicationDate = b.PublicationDate.Format(dateLayout)
	}
	return v
}

func NewBookList(books []models.Book, meta util.Meta) ListResponse[BookView] {
	out := make([]BookView, 0, len(books))
	for i := range books {
		out = append(out, NewBookView(&books[i]))
	}
	return ListResponse[BookView]{Data: out, Meta: meta}
}

type CartItemView struct {
	ID       uint     `json:"id"`
	Book     BookView `json:"book"`
	Quantity int      `json:"quantity"`
	Subtotal string   `json:"subtotal"`
}

func NewCartItemView(it *models.CartItem) CartItemView {
	v := CartItemView{ID: it.ID, Quantity: it.Quantity, Subtotal: it.Subtotal().StringFixed(2)}
	if it.Book != nil {
		v.Book = NewBookView(it.Book)
	}
	return v
}

type CartView struct {
	ID            uint           `json:"id"`
	Items         []CartItemView `json:"items"`
	TotalPrice    string         `json:"total_price"`
	TotalQuantity int            `json:"total_quantity"`
}

func NewCartView(c *models.Cart) CartView {
	items := make([]CartItemView, 0, len(c.Items))
	for i := range c.Items {
		items = append(items, NewCartItemView(&c.Items[i]))
	}
	return CartView{
		ID:            c.ID,
		Items:         items,
		TotalPrice:    c.TotalPrice().StringFixed(2),
		TotalQuantity: c.TotalQuantity(),
	}
}

type CheckoutPreviewView struct {
	Cart            CartView `json:"cart"`
	Total           string   `json:"total"`
	ShippingAddress string   `json:"shipping_address"`
	Phone           string   `json:"phone"`
}

func NewCheckoutPreviewView(p *service.CheckoutPreview) CheckoutPreviewView {
	return CheckoutPreviewView{
		Cart:            NewCartView(p.Cart),
		Total:           p.Total.StringFixed(2),
		ShippingAddress: p.ShippingAddress,
		Phone:           p.Phone,
	}
}

type OrderItemView struct {
	ID       uint   `json:"id"`
	BookID   uint   `json:"book_id"`
	Title    string `json:"title,omitempty"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	Subtotal string `json:"subtotal"`
}

type OrderView struct {
	ID              uint            `json:"id"`
	Status          string          `json:"status"`
	TotalPrice      string          `json:"total_price"`
	TotalItems      int             `json:"total_items"`
	ShippingAddress string          `json:"shipping_address"`
	Phone           string          `json:"phone"`
	Notes           string          `json:"notes,omitempty"`
	Items           []OrderItemView `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
}

func NewOrderView(o *models.Order) OrderView {
	items := make([]OrderItemView, 0, len(o.Items))
	for i := range o.Items {
		it := &o.Items[i]
		v := OrderItemView{
			ID:       it.ID,
			BookID:   it.BookID,
			Quantity: it.Quantity,
			Price:    it.Price.StringFixed(2),
			Subtotal: it.Subtotal().StringFixed(2),
		}
		if it.Book != nil {
			v.Title = it.Book.Title
		}
		items = append(items, v)
	}
	return OrderView{
		ID:              o.ID,
		Status:          string(o.Status),
		TotalPrice:      o.TotalPrice.StringFixed(2),
		TotalItems:      o.TotalItems(),
		ShippingAddress: o.ShippingAddress,
		Phone:           o.Phone,
		Notes:           o.Notes,
		Items:           items,
		CreatedAt:       o.CreatedAt,
	}
}

func NewOrderList(orders []models.Order, meta util.Meta) ListResponse[OrderView] {
	out := make([]OrderView, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderView(&orders[i]))
	}
	return ListResponse[OrderView]{Data: out, Meta: meta}
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("publication_date must be YYYY-MM-DD: %w", service.ErrValidation)
	}
	return &t, nil
}
