package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/vkuznec/parts_shop/internal/handlers"
	authmw "github.com/vkuznec/parts_shop/internal/middleware/auth"
)

type Deps struct {
	DB            *gorm.DB
	AuthHandler   *handlers.AuthHandler
	PartHandler   *handlers.PartHandler
	SaleHandler   *handlers.SaleHandler
	SearchHandler *handlers.SearchHandler
	Gate          *authmw.Gate
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.LogOut)
	v1.POST("/refresh", d.AuthHandler.Refresh)

	parts := v1.Group("/parts")
	parts.GET("", d.PartHandler.GetParts)
	parts.GET("/:id", d.PartHandler.GetPart)

	if d.SearchHandler != nil {
		v1.GET("/search", d.SearchHandler.Handler)
	}

	admin := v1.Group("/admin", d.Gate.RequireAdmin)

	admin.POST("/parts", d.PartHandler.CreatePart)
	admin.PATCH("/parts/:id", d.PartHandler.UpdatePart)
	admin.DELETE("/parts/:id", d.PartHandler.DeletePart)
	admin.GET("/parts/search", d.PartHandler.SearchInStock)
	admin.POST("/parts/:id/videos", d.PartHandler.UploadVideos)
	admin.DELETE("/videos/:id", d.PartHandler.DeleteVideo)

	admin.POST("/sales", d.SaleHandler.CreateSale)
	admin.GET("/sales", d.SaleHandler.GetSales)
	admin.GET("/sales/:id", d.SaleHandler.GetSale)
}
