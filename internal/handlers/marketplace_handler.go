package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lumen-backend/internal/models"
	"lumen-backend/internal/responses"
	"lumen-backend/internal/services"
)

// multipart framing allowance on top of the file size limit
const uploadOverhead = 1 << 20

type MarketplaceHandler struct {
	market         *services.MarketplaceService
	maxUploadBytes int64
}

func NewMarketplaceHandler(market *services.MarketplaceService, maxUploadBytes int64) *MarketplaceHandler {
	return &MarketplaceHandler{market: market, maxUploadBytes: maxUploadBytes}
}

func productFilter(c *gin.Context) (models.ProductFilter, error) {
	f := models.ProductFilter{Kind: models.ProductKind(c.Query("kind")), Query: c.Query("q"), Page: pageQuery(c)}
	var err error
	if f.ReaderID, err = optionalUUID(c, "reader_id"); err != nil {
		return f, err
	}
	for key, dst := range map[string]**int64{"min_price": &f.MinPrice, "max_price": &f.MaxPrice} {
		if v := c.Query(key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return f, err
			}
			*dst = &n
		}
	}
	return f, nil
}

// Browse handles GET /api/v1/products
func (h *MarketplaceHandler) Browse(c *gin.Context) {
	f, err := productFilter(c)
	if err != nil {
		badRequest(c, err, "Invalid filter")
		return
	}
	list, err := h.market.Browse(c.Request.Context(), f)
	if err != nil {
		fail(c, err, "Failed to list products")
		return
	}
	responses.Success(c, http.StatusOK, list, "Products retrieved")
}

func (h *MarketplaceHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "product_id")
	if !ok {
		return
	}
	p, err := h.market.Product(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err, "Failed to retrieve product")
		return
	}
	responses.Success(c, http.StatusOK, p, "Product retrieved")
}

// Mine handles GET /api/v1/products/mine (readers)
func (h *MarketplaceHandler) Mine(c *gin.Context) {
	f, err := productFilter(c)
	if err != nil {
		badRequest(c, err, "Invalid filter")
		return
	}
	f.Status = models.ProductStatus(c.Query("status"))
	list, err := h.market.MyProducts(c.Request.Context(), currentUser(c).ID, f)
	if err != nil {
		fail(c, err, "Failed to list products")
		return
	}
	responses.Success(c, http.StatusOK, list, "Products retrieved")
}

func (h *MarketplaceHandler) Create(c *gin.Context) {
	var req services.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	p, err := h.market.CreateProduct(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		fail(c, err, "Could not create product")
		return
	}
	responses.Success(c, http.StatusCreated, p, "Product created")
}

func (h *MarketplaceHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "product_id")
	if !ok {
		return
	}
	var req services.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	p, err := h.market.UpdateProduct(c.Request.Context(), currentUser(c).ID, id, req)
	if err != nil {
		fail(c, err, "Could not update product")
		return
	}
	responses.Success(c, http.StatusOK, p, "Product updated")
}

func (h *MarketplaceHandler) Archive(c *gin.Context) {
	id, ok := uuidParam(c, "product_id")
	if !ok {
		return
	}
	if err := h.market.ArchiveProduct(c.Request.Context(), currentUser(c).ID, id); err != nil {
		fail(c, err, "Could not archive product")
		return
	}
	responses.Success(c, http.StatusOK, nil, "Product archived")
}

// Upload handles PUT /api/v1/products/:product_id/file as multipart form
// data with a "file" part.
func (h *MarketplaceHandler) Upload(c *gin.Context) {
	id, ok := uuidParam(c, "product_id")
	if !ok {
		return
	}
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+uploadOverhead)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, err, "A file part is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, err, "Could not read the uploaded file")
		return
	}
	defer f.Close()

	p, err := h.market.Upload(c.Request.Context(), currentUser(c).ID, id, fh.Filename,
		fh.Header.Get("Content-Type"), fh.Size, f)
	if err != nil {
		fail(c, err, "Could not store file")
		return
	}
	responses.Success(c, http.StatusOK, p, "File uploaded")
}

// Download handles GET /api/v1/products/:product_id/download
func (h *MarketplaceHandler) Download(c *gin.Context) {
	id, ok := uuidParam(c, "product_id")
	if !ok {
		return
	}
	dl, err := h.market.Download(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err, "Download not available")
		return
	}
	responses.Success(c, http.StatusOK, dl, "Download link created")
}

// Cart

func (h *MarketplaceHandler) Cart(c *gin.Context) {
	cart, err := h.market.Cart(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		fail(c, err, "Failed to retrieve cart")
		return
	}
	responses.Success(c, http.StatusOK, cart, "Cart retrieved")
}

// SetItem handles PUT /api/v1/cart/items/:product_id
func (h *MarketplaceHandler) SetItem(c *gin.Context) {
	id, ok := uuidParam(c, "product_id")
	if !ok {
		return
	}
	var req struct {
		Quantity int `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	cart, err := h.market.SetCartItem(c.Request.Context(), currentUser(c).ID, id, req.Quantity)
	if err != nil {
		fail(c, err, "Could not update cart")
		return
	}
	responses.Success(c, http.StatusOK, cart, "Cart updated")
}

func (h *MarketplaceHandler) RemoveItem(c *gin.Context) {
	id, ok := uuidParam(c, "product_id")
	if !ok {
		return
	}
	cart, err := h.market.RemoveCartItem(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		fail(c, err, "Could not update cart")
		return
	}
	responses.Success(c, http.StatusOK, cart, "Cart updated")
}

// ApplyCoupon handles POST /api/v1/cart/coupon; an empty code removes the
// coupon.
func (h *MarketplaceHandler) ApplyCoupon(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"max=40"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	cart, err := h.market.ApplyCoupon(c.Request.Context(), currentUser(c).ID, req.Code)
	if err != nil {
		fail(c, err, "Could not apply coupon")
		return
	}
	responses.Success(c, http.StatusOK, cart, "Coupon applied")
}

func (h *MarketplaceHandler) Checkout(c *gin.Context) {
	order, err := h.market.Checkout(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err, "Checkout failed")
		return
	}
	responses.Success(c, http.StatusCreated, order, "Order placed")
}

func (h *MarketplaceHandler) Orders(c *gin.Context) {
	list, err := h.market.Orders(c.Request.Context(), currentUser(c).ID, pageQuery(c))
	if err != nil {
		fail(c, err, "Failed to list orders")
		return
	}
	responses.Success(c, http.StatusOK, list, "Orders retrieved")
}

// Admin coupons

func (h *MarketplaceHandler) Coupons(c *gin.Context) {
	out, err := h.market.Coupons(c.Request.Context())
	if err != nil {
		fail(c, err, "Failed to list coupons")
		return
	}
	responses.Success(c, http.StatusOK, out, "Coupons retrieved")
}

func (h *MarketplaceHandler) CreateCoupon(c *gin.Context) {
	var req services.CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	coupon, err := h.market.CreateCoupon(c.Request.Context(), req)
	if err != nil {
		fail(c, err, "Could not create coupon")
		return
	}
	responses.Success(c, http.StatusCreated, coupon, "Coupon created")
}

func (h *MarketplaceHandler) SetCouponActive(c *gin.Context) {
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	if err := h.market.SetCouponActive(c.Request.Context(), c.Param("code"), *req.Active); err != nil {
		fail(c, err, "Could not update coupon")
		return
	}
	responses.Success(c, http.StatusOK, nil, "Coupon updated")
}
