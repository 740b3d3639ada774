package domain

import "time"

type InventoryItem struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Code         string  `json:"code,omitempty"`
	Quantity     int     `json:"quantity"`
	CostPrice    float64 `json:"costPrice"`
	SellingPrice float64 `json:"sellingPrice"`
}

type InventoryItemCreateRequest struct {
	Name         string  `json:"name"`
	Code         string  `json:"code,omitempty"`
	Quantity     int     `json:"quantity"`
	CostPrice    float64 `json:"costPrice"`
	SellingPrice float64 `json:"sellingPrice"`
}

type InventoryItemUpdateRequest struct {
	Name         *string  `json:"name,omitempty"`
	Code         *string  `json:"code,omitempty"`
	Quantity     *int     `json:"quantity,omitempty"`
	CostPrice    *float64 `json:"costPrice,omitempty"`
	SellingPrice *float64 `json:"sellingPrice,omitempty"`
}

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type CustomerUpdateRequest struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// InvoiceLineInput is one requested line on an invoice create/update. Price
// overrides the item's current selling price when set.
type InvoiceLineInput struct {
	ItemID   string   `json:"itemId"`
	Quantity int      `json:"quantity"`
	Price    *float64 `json:"price,omitempty"`
}

// InvoiceLineItem is a committed invoice line. Name, code and cost price are
// snapshots taken at sale time; later inventory edits do not touch them.
type InvoiceLineItem struct {
	ItemID    string  `json:"id"`
	Name      string  `json:"name"`
	Code      string  `json:"code,omitempty"`
	Price     float64 `json:"price"`
	CostPrice float64 `json:"costPrice"`
	Quantity  int     `json:"quantity"`
	Total     float64 `json:"total"`
}

type Invoice struct {
	ID             string            `json:"id"`
	CustomerID     string            `json:"customerId"`
	CustomerName   string            `json:"customerName"`
	Items          []InvoiceLineItem `json:"items"`
	Subtotal       float64           `json:"subtotal"`
	TaxRate        float64           `json:"taxRate"`
	Tax            float64           `json:"tax"`
	DiscountAmount float64           `json:"discountAmount"`
	Total          float64           `json:"total"`
	TotalCostPrice float64           `json:"totalCostPrice"`
	Profit         float64           `json:"profit"`
	Date           time.Time         `json:"date"`
}

type InvoiceCreateRequest struct {
	CustomerID     string             `json:"customerId"`
	Lines          []InvoiceLineInput `json:"lines"`
	TaxRate        float64            `json:"taxRate"`
	DiscountAmount float64            `json:"discountAmount"`
}

type ReturnLineItem struct {
	ItemID   string  `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Total    float64 `json:"total"`
}

// ReturnRecord is write-once: once a return is processed it is never mutated
// and cannot be reversed.
type ReturnRecord struct {
	ID           string           `json:"id"`
	InvoiceID    string           `json:"invoiceId"`
	CustomerID   string           `json:"customerId"`
	CustomerName string           `json:"customerName"`
	Items        []ReturnLineItem `json:"items"`
	TotalAmount  float64          `json:"totalAmount"`
	ReturnDate   time.Time        `json:"returnDate"`
	Type         string           `json:"type"`
}

type ReturnRequest struct {
	Quantities map[string]int `json:"quantities"`
}

type Activity struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type DashboardStats struct {
	TotalItems     int `json:"totalItems"`
	TotalCustomers int `json:"totalCustomers"`
	TotalInvoices  int `json:"totalInvoices"`
}

type ProfitSummary struct {
	Period         string  `json:"period"`
	GrossSales     float64 `json:"grossSales"`
	TotalDiscounts float64 `json:"totalDiscounts"`
	NetSales       float64 `json:"netSales"`
	TotalCost      float64 `json:"totalCost"`
	TotalProfit    float64 `json:"totalProfit"`
}

type CustomerRanking struct {
	CustomerID   string  `json:"customerId"`
	CustomerName string  `json:"customerName"`
	TotalProfit  float64 `json:"totalProfit"`
	TotalOrders  int     `json:"totalOrders"`
	TotalAmount  float64 `json:"totalAmount"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	ActivityInventory = "inventory"
	ActivityCustomer  = "customer"
	ActivityInvoice   = "invoice"
	ActivityReturn    = "return"
)

const ReturnRecordType = "return"

const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)
