package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkuznec/parts_shop/internal/models"
	"github.com/vkuznec/parts_shop/internal/service/sale"
)

func TestCreateSaleHandler_Success(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	part := env.createPart("стартер", 300, 5)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/admin/sales", sale.CreateSaleInput{
		Items:            []sale.SaleLine{{PartID: part.ID, Quantity: 2}},
		DiscountType:     sale.DiscountPercent,
		DiscountValue:    10,
		TransportCompany: "СДЭК",
	})
	require.NoError(t, env.Sales.CreateSale(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var got models.Sale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(600), got.TotalAmount)
	assert.Equal(t, int64(540), got.FinalAmount)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "стартер", got.Items[0].PartName)

	var updated models.Part
	require.NoError(t, env.DB.First(&updated, part.ID).Error)
	assert.Equal(t, 3, updated.Quantity)
}

func TestCreateSaleHandler_EmptyItems(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/admin/sales", sale.CreateSaleInput{})
	require.NoError(t, env.Sales.CreateSale(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
}

func TestCreateSaleHandler_UnknownPart(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/admin/sales", sale.CreateSaleInput{
		Items: []sale.SaleLine{{PartID: 777, Quantity: 1}},
	})
	require.NoError(t, env.Sales.CreateSale(c))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSaleHandler_InsufficientStock(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	part := env.createPart("радиатор", 500, 1)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/admin/sales", sale.CreateSaleInput{
		Items: []sale.SaleLine{{PartID: part.ID, Quantity: 3}},
	})
	require.NoError(t, env.Sales.CreateSale(c))
	require.Equal(t, http.StatusConflict, rec.Code)

	// the failed sale must not touch the stock
	var updated models.Part
	require.NoError(t, env.DB.First(&updated, part.ID).Error)
	assert.Equal(t, 1, updated.Quantity)
}

func TestGetSaleHandler_SnapshotAfterDepletion(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	part := env.createPart("генератор", 250, 2)
	require.NoError(t, env.Store.SaveImage(part.ID, "main.jpg", strings.NewReader("jpeg")))
	require.NoError(t, env.DB.Create(&models.PartImage{PartID: part.ID, Filename: "main.jpg", IsMain: true}).Error)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/admin/sales", sale.CreateSaleInput{
		Items: []sale.SaleLine{{PartID: part.ID, Quantity: 2}},
	})
	require.NoError(t, env.Sales.CreateSale(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Sale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// part sold out and got swept away
	var count int64
	require.NoError(t, env.DB.Model(&models.Part{}).Where("id = ?", part.ID).Count(&count).Error)
	require.Zero(t, count)
	assert.NoDirExists(t, filepath.Join(env.Store.Root, strconv.FormatUint(uint64(part.ID), 10)))

	rec, c = env.doJSONRequest(http.MethodGet, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(uint64(created.ID), 10))
	require.NoError(t, env.Sales.GetSale(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Sale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "генератор", got.Items[0].PartName)
	assert.Equal(t, part.ID, got.Items[0].PartID)
}

func TestGetSaleHandler_NotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodGet, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues("123")
	require.NoError(t, env.Sales.GetSale(c))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSalesHandler_NewestFirst(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	old := models.Sale{TotalAmount: 100, FinalAmount: 100, CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, env.DB.Create(&old).Error)
	fresh := models.Sale{TotalAmount: 200, FinalAmount: 200, CreatedAt: time.Now()}
	require.NoError(t, env.DB.Create(&fresh).Error)

	rec, c := env.doJSONRequest(http.MethodGet, "/", nil)
	require.NoError(t, env.Sales.GetSales(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.Sale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, fresh.ID, got[0].ID)
	assert.Equal(t, old.ID, got[1].ID)
}
