package handler

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/retailhub/order-service/internal/domain/order"
)

type createOrderLineRequest struct {
	CartLineID     string          `json:"cartLineId"`
	ProductID      string          `json:"productId"`
	ManufacturerID string          `json:"manufacturerId"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
}

type createOrderRequest struct {
	RetailerID       string                   `json:"retailerId"`
	PaymentMode      string                   `json:"paymentMode"`
	PaymentCurrency  string                   `json:"paymentCurrency"`
	ShippingCost     decimal.Decimal          `json:"shippingCost"`
	ShippingCurrency string                   `json:"shippingCurrency"`
	ShippingAddress  string                   `json:"shippingAddress"`
	Lines            []createOrderLineRequest `json:"lines"`
}

type createOrderResponse struct {
	OrderID    string          `json:"orderId"`
	Status     string          `json:"status"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	lines := make([]order.CreateLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = order.CreateLine{
			CartLineID:     l.CartLineID,
			ProductID:      l.ProductID,
			ManufacturerID: l.ManufacturerID,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
		}
	}

	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		RetailerID:       req.RetailerID,
		PaymentMode:      order.PaymentMode(req.PaymentMode),
		PaymentCurrency:  req.PaymentCurrency,
		ShippingCost:     req.ShippingCost,
		ShippingCurrency: req.ShippingCurrency,
		ShippingAddress:  req.ShippingAddress,
		Lines:            lines,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createOrderResponse{
		OrderID:    o.ID,
		Status:     string(o.Status),
		TotalPrice: o.TotalPrice,
	})
}

type lineViewResponse struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"productId"`
	ProductName      *string         `json:"productName"`
	ManufacturerID   string          `json:"manufacturerId"`
	ManufacturerName *string         `json:"manufacturerName"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	Status           string          `json:"status"`
}

type orderViewResponse struct {
	ID                 string             `json:"id"`
	RetailerID         string             `json:"retailerId"`
	RetailerName       *string            `json:"retailerName"`
	FulfillmentAgentID string             `json:"fulfillmentAgentId,omitempty"`
	Status             string             `json:"status"`
	TotalPrice         decimal.Decimal    `json:"totalPrice"`
	PaymentMode        string             `json:"paymentMode"`
	PaymentCurrency    string             `json:"paymentCurrency"`
	ShippingCost       decimal.Decimal    `json:"shippingCost"`
	ShippingCurrency   string             `json:"shippingCurrency"`
	ShippingAddress    string             `json:"shippingAddress"`
	Lines              []lineViewResponse `json:"lines"`
}

type queryOrdersResponse struct {
	Orders      []orderViewResponse `json:"orders"`
	TotalOrders int                 `json:"totalOrders"`
	TotalPages  int                 `json:"totalPages"`
	PageNumber  int                 `json:"pageNumber"`
	PageSize    int                 `json:"pageSize"`
}

// refName renders an unresolved ref as JSON null so clients can tell a missing
// lookup from an entity whose name is empty.
func refName(ref order.Ref) *string {
	if !ref.Resolved {
		return nil
	}
	return &ref.Name
}

func (h *Handler) queryOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := intParam(q.Get("pageNumber"), 1)
	pageSize := intParam(q.Get("pageSize"), 10)
	if page <= 0 || pageSize <= 0 {
		h.writeError(w, r, order.ErrValidation)
		return
	}

	result, err := h.queries.Query(r.Context(), order.QueryRequest{
		Filter: order.Filter{
			OrderID:            q.Get("orderId"),
			RetailerID:         q.Get("retailerId"),
			FulfillmentAgentID: q.Get("fulfillmentAgentId"),
			Status:             order.Status(q.Get("orderStatus")),
			ManufacturerID:     q.Get("manufacturerId"),
			LineStatus:         order.LineStatus(q.Get("lineStatus")),
		},
		Names: order.NameFilter{
			RetailerName:     q.Get("retailerName"),
			ManufacturerName: q.Get("manufacturerName"),
			ProductName:      q.Get("productName"),
		},
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]orderViewResponse, 0, len(result.Orders))
	for _, v := range result.Orders {
		ov := orderViewResponse{
			ID:                 v.ID,
			RetailerID:         v.Retailer.ID,
			RetailerName:       refName(v.Retailer),
			FulfillmentAgentID: v.FulfillmentAgentID,
			Status:             string(v.Status),
			TotalPrice:         v.TotalPrice,
			PaymentMode:        string(v.PaymentMode),
			PaymentCurrency:    v.PaymentCurrency,
			ShippingCost:       v.ShippingCost,
			ShippingCurrency:   v.ShippingCurrency,
			ShippingAddress:    v.ShippingAddress,
		}
		for _, l := range v.Lines {
			ov.Lines = append(ov.Lines, lineViewResponse{
				ID:               l.ID,
				ProductID:        l.Product.ID,
				ProductName:      refName(l.Product),
				ManufacturerID:   l.Manufacturer.ID,
				ManufacturerName: refName(l.Manufacturer),
				Quantity:         l.Quantity,
				UnitPrice:        l.UnitPrice,
				Status:           string(l.Status),
			})
		}
		views = append(views, ov)
	}

	writeJSON(w, http.StatusOK, queryOrdersResponse{
		Orders:      views,
		TotalOrders: result.TotalOrders,
		TotalPages:  result.TotalPages,
		PageNumber:  page,
		PageSize:    pageSize,
	})
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), order.Status(req.Status), req.Actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"orderId": o.ID,
		"status":  string(o.Status),
	})
}

type reviewOrderRequest struct {
	Decisions []struct {
		LineID string `json:"lineId"`
		Accept bool   `json:"accept"`
	} `json:"decisions"`
}

func (h *Handler) reviewOrder(w http.ResponseWriter, r *http.Request) {
	var req reviewOrderRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	decisions := make([]order.Decision, len(req.Decisions))
	for i, d := range req.Decisions {
		decisions[i] = order.Decision{LineID: d.LineID, Accept: d.Accept}
	}

	result, err := h.orders.AcceptReject(r.Context(), r.PathValue("id"), decisions)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"orderId": result.OrderID,
		"status":  string(result.Status),
	})
}

func intParam(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
