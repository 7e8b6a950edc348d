package api

import (
	"fmt"
	"net/http"
	"strconv"

	"catalog-service/internal/auth"
	"catalog-service/internal/models"
	"catalog-service/internal/service"
	"catalog-service/internal/taxonomy"

	"github.com/gin-gonic/gin"
)

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		validationError(c, "Invalid path parameter", fmt.Errorf("%s must be an integer", name))
		return 0, false
	}
	return id, true
}

func queryInt64(c *gin.Context, name string) (*int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	return &v, nil
}

// parseProductFilter reads and validates the product search query
func parseProductFilter(c *gin.Context) (models.ProductFilter, error) {
	filter := models.ProductFilter{
		Name:  c.Query("name"),
		Limit: models.DefaultProductLimit,
	}

	var err error
	if filter.MinPrice, err = queryInt64(c, "min_price"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = queryInt64(c, "max_price"); err != nil {
		return filter, err
	}

	if raw := c.Query("game"); raw != "" {
		game, ok := taxonomy.ParseGame(raw)
		if !ok {
			return filter, fmt.Errorf("game must be one of pokemon, yugioh, magic, other")
		}
		filter.Game = &game
	}
	if raw := c.Query("product_type"); raw != "" {
		pt, ok := taxonomy.ParseProductType(raw)
		if !ok {
			return filter, fmt.Errorf("product_type must be one of booster, singles, bundle, other")
		}
		filter.ProductType = &pt
	}

	skip, err := queryInt64(c, "skip")
	if err != nil {
		return filter, err
	}
	if skip != nil {
		if *skip < 0 {
			return filter, fmt.Errorf("skip must be greater than or equal to 0")
		}
		filter.Skip = int(*skip)
	}

	limit, err := queryInt64(c, "limit")
	if err != nil {
		return filter, err
	}
	if limit != nil {
		if *limit < 1 || *limit > models.MaxProductLimit {
			return filter, fmt.Errorf("limit must be between 1 and %d", models.MaxProductLimit)
		}
		filter.Limit = int(*limit)
	}

	return filter, nil
}

func (h *Handler) listProducts(c *gin.Context) {
	filter, err := parseProductFilter(c)
	if err != nil {
		validationError(c, "Invalid query parameter", err)
		return
	}

	products, err := h.catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	detail, err := h.catalog.GetProductDetail(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "Invalid request body", err)
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) createProductsBulk(c *gin.Context) {
	var reqs []service.CreateProductRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		validationError(c, "Invalid request body", err)
		return
	}

	products, err := h.catalog.CreateProductsBulk(c.Request.Context(), reqs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, products)
}

func (h *Handler) recordPrice(c *gin.Context) {
	var req service.CreatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "Invalid request body", err)
		return
	}

	price, err := h.catalog.RecordPrice(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, price)
}

func (h *Handler) listPrices(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	storeID, err := queryInt64(c, "store_id")
	if err != nil {
		validationError(c, "Invalid query parameter", err)
		return
	}

	latestOnly := false
	if raw := c.Query("latest"); raw != "" {
		if latestOnly, err = strconv.ParseBool(raw); err != nil {
			validationError(c, "Invalid query parameter", fmt.Errorf("latest must be a boolean"))
			return
		}
	}

	prices, err := h.catalog.ListPrices(c.Request.Context(), id, storeID, latestOnly)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prices)
}

func (h *Handler) listStores(c *gin.Context) {
	stores, err := h.catalog.ListStores(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stores)
}

func (h *Handler) getStore(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	st, err := h.catalog.GetStore(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) createStore(c *gin.Context) {
	var req service.CreateStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "Invalid request body", err)
		return
	}

	st, err := h.catalog.CreateStore(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

// callerName fills an empty user field from the authenticated principal
func callerName(c *gin.Context, user string) string {
	if user != "" {
		return user
	}
	if p, ok := auth.PrincipalFrom(c); ok {
		return p.DisplayName()
	}
	return ""
}

func (h *Handler) listComments(c *gin.Context) {
	id, ok := pathID(c, "product_id")
	if !ok {
		return
	}

	comments, err := h.catalog.ListComments(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *Handler) createComment(c *gin.Context) {
	var req service.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "Invalid request body", err)
		return
	}
	req.User = callerName(c, req.User)
	if req.User == "" {
		validationError(c, "Invalid request body", fmt.Errorf("user is required"))
		return
	}

	comment, err := h.catalog.CreateComment(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) listReviews(c *gin.Context) {
	id, ok := pathID(c, "store_id")
	if !ok {
		return
	}

	reviews, err := h.catalog.ListReviews(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (h *Handler) createReview(c *gin.Context) {
	var req service.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "Invalid request body", err)
		return
	}
	req.User = callerName(c, req.User)
	if req.User == "" {
		validationError(c, "Invalid request body", fmt.Errorf("user is required"))
		return
	}

	review, created, err := h.catalog.CreateReview(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, review)
}

// ingestBatch reconciles a scraper batch. Item failures are reported in
// the body; only a malformed body is rejected.
func (h *Handler) ingestBatch(c *gin.Context) {
	var items []models.ScrapperItem
	if err := c.ShouldBindJSON(&items); err != nil {
		validationError(c, "Invalid request body", err)
		return
	}

	report := h.ingest.ProcessBatch(c.Request.Context(), items)
	c.JSON(http.StatusOK, report)
}
