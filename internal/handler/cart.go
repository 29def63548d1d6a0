package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/retailhub/order-service/internal/domain/cart"
)

type addCartLineRequest struct {
	RetailerID     string          `json:"retailerId"`
	ProductID      string          `json:"productId"`
	ManufacturerID string          `json:"manufacturerId"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
}

func (h *Handler) addCartLine(w http.ResponseWriter, r *http.Request) {
	var req addCartLineRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	l, err := h.carts.Add(r.Context(), cart.AddRequest{
		RetailerID:     req.RetailerID,
		ProductID:      req.ProductID,
		ManufacturerID: req.ManufacturerID,
		Quantity:       req.Quantity,
		UnitPrice:      req.UnitPrice,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"cartLineId": l.ID})
}

type cartLineViewResponse struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"productId"`
	ProductName  *string         `json:"productName"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	LineTotal    decimal.Decimal `json:"lineTotal"`
	OutOfStock   bool            `json:"outOfStock"`
	RetailerName string          `json:"retailerName"`
	Phone        string          `json:"phone"`
	Address      string          `json:"address"`
}

func (h *Handler) cartByRetailer(w http.ResponseWriter, r *http.Request) {
	views, err := h.carts.EnrichedByRetailer(r.Context(), r.PathValue("retailerID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]cartLineViewResponse, 0, len(views))
	for _, v := range views {
		item := cartLineViewResponse{
			ID:           v.ID,
			ProductID:    v.ProductID,
			Quantity:     v.Quantity,
			UnitPrice:    v.UnitPrice,
			LineTotal:    v.LineTotal,
			OutOfStock:   v.OutOfStock,
			RetailerName: v.RetailerName,
			Phone:        v.Phone,
			Address:      v.Address,
		}
		if v.ProductResolved {
			name := v.ProductName
			item.ProductName = &name
		}
		out = append(out, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": out,
		"count": len(out),
	})
}

func (h *Handler) removeCartLine(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Remove(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
