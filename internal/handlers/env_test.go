package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vkuznec/parts_shop/internal/models"
	"github.com/vkuznec/parts_shop/internal/service/sale"
	"github.com/vkuznec/parts_shop/internal/service/token"
	"github.com/vkuznec/parts_shop/internal/storage"
)

type testEnv struct {
	T      *testing.T
	E      *echo.Echo
	DB     *gorm.DB
	Store  *storage.Storage
	Tokens *token.Service
	Auth   *AuthHandler
	Parts  *PartHandler
	Sales  *SaleHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Part{},
		&models.PartImage{},
		&models.PartVideo{},
		&models.Sale{},
		&models.SaleItem{},
	))

	store := storage.New(t.TempDir())
	tokens := &token.Service{
		DB:            db,
		JWTSecret:     []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
	svc := &sale.Service{DB: db, Store: store}

	return &testEnv{
		T:      t,
		E:      echo.New(),
		DB:     db,
		Store:  store,
		Tokens: tokens,
		Auth:   &AuthHandler{DB: db, Tokens: tokens},
		Parts:  &PartHandler{DB: db, Store: store, Svc: svc},
		Sales:  &SaleHandler{DB: db, Svc: svc},
	}
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) doFormRequest(method, path string, body *bytes.Buffer, contentType string) (*httptest.ResponseRecorder, echo.Context) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, contentType)

	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

type formFile struct {
	field    string
	filename string
	content  []byte
}

func buildMultipart(t *testing.T, fields map[string]string, values map[string][]string, files []formFile) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for k, vs := range values {
		for _, v := range vs {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = fw.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (env *testEnv) createPart(name string, priceOut int64, quantity int) models.Part {
	env.T.Helper()

	part := models.Part{
		Name:       name,
		Car:        "Kia Rio",
		PartNumber: "PN-" + name,
		PriceIn:    priceOut / 2,
		PriceOut:   priceOut,
		Quantity:   quantity,
	}
	require.NoError(env.T, env.DB.Create(&part).Error)
	return part
}

func requireHTTPError(t *testing.T, err error, code int) {
	t.Helper()

	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, code, he.Code)
}
