// Package server assembles the HTTP routes.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"ledgersync/internal/handlers"
	"ledgersync/internal/middleware"
	"ledgersync/internal/services"

	_ "ledgersync/internal/docs" // Import swagger docs
)

// Dependencies are the collaborators the routes are served by.
type Dependencies struct {
	Ledger      services.LedgerServicer
	Sync        services.SyncServicer
	Credentials handlers.CredentialHolder
	Rates       handlers.RateSource

	JWTSecret string
	TokenTTL  time.Duration
	// APIKey guards token issuance and the credential endpoints.
	APIKey string
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Dependencies) *gin.Engine {
	institutionHandler := handlers.NewInstitutionHandler(deps.Ledger)
	accountHandler := handlers.NewAccountHandler(deps.Ledger)
	assetHandler := handlers.NewAssetHandler(deps.Ledger)
	transactionHandler := handlers.NewTransactionHandler(deps.Ledger)
	fxRateHandler := handlers.NewFxRateHandler(deps.Ledger)
	documentHandler := handlers.NewDocumentHandler(deps.Ledger)
	summaryHandler := handlers.NewSummaryHandler(deps.Ledger)
	syncHandler := handlers.NewSyncHandler(deps.Sync)
	ratesHandler := handlers.NewRatesHandler(deps.Rates)
	credentialsHandler := handlers.NewCredentialsHandler(deps.Credentials)
	authHandler := handlers.NewAuthHandler(deps.JWTSecret, deps.TokenTTL)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS())

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if size, err := deps.Ledger.StorageSize(c.Request.Context()); err == nil {
			body["storage_bytes"] = size
		}
		if status, err := deps.Sync.Status(c.Request.Context()); err == nil {
			body["sync"] = status
		}
		c.JSON(http.StatusOK, body)
	})

	v1 := router.Group("/api/v1")

	// API key routes
	keyed := v1.Group("/")
	keyed.Use(middleware.APIKeyMiddleware(deps.APIKey))
	keyed.POST("/auth/token", authHandler.IssueToken)
	keyed.GET("/credentials", credentialsHandler.GetCredential)
	keyed.PUT("/credentials", credentialsHandler.SetCredential)
	keyed.DELETE("/credentials", credentialsHandler.ClearCredential)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(deps.JWTSecret))

	institutions := protected.Group("/institutions")
	institutions.POST("", institutionHandler.CreateInstitution)
	institutions.GET("", institutionHandler.ListInstitutions)
	institutions.GET("/:id", institutionHandler.GetInstitution)
	institutions.PATCH("/:id", institutionHandler.UpdateInstitution)
	institutions.DELETE("/:id", institutionHandler.DeleteInstitution)

	accounts := protected.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.ListAccounts)
	accounts.GET("/:id", accountHandler.GetAccount)
	accounts.PATCH("/:id", accountHandler.UpdateAccount)
	accounts.DELETE("/:id", accountHandler.DeleteAccount)
	accounts.GET("/:id/balance", accountHandler.GetAccountBalance)

	assets := protected.Group("/assets")
	assets.POST("", assetHandler.CreateAsset)
	assets.GET("", assetHandler.ListAssets)
	assets.GET("/:id", assetHandler.GetAsset)
	assets.PATCH("/:id", assetHandler.UpdateAsset)
	assets.DELETE("/:id", assetHandler.DeleteAsset)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.ListTransactions)
	transactions.GET("/:id", transactionHandler.GetTransaction)
	transactions.PATCH("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	fx := protected.Group("/fx-rates")
	fx.POST("", fxRateHandler.CreateFxRate)
	fx.GET("", fxRateHandler.ListFxRates)
	fx.GET("/:id", fxRateHandler.GetFxRate)
	fx.PATCH("/:id", fxRateHandler.UpdateFxRate)
	fx.DELETE("/:id", fxRateHandler.DeleteFxRate)

	protected.GET("/preferences", documentHandler.GetPreferences)
	protected.PATCH("/preferences", documentHandler.UpdatePreferences)

	document := protected.Group("/document")
	document.GET("", documentHandler.ExportDocument)
	document.POST("/import", documentHandler.ImportDocument)
	document.POST("/reset", documentHandler.ResetDocument)
	document.DELETE("", documentHandler.ClearAll)

	summary := protected.Group("/summary")
	summary.GET("/net-worth", summaryHandler.GetNetWorth)
	summary.GET("/totals-by-class", summaryHandler.GetTotalsByClass)
	summary.GET("/top-accounts", summaryHandler.GetTopAccounts)
	summary.GET("/recent-transactions", summaryHandler.GetRecentTransactions)

	rates := protected.Group("/rates")
	rates.GET("", ratesHandler.GetRates)
	rates.POST("/refresh", ratesHandler.RefreshRates)
	rates.GET("/convert", ratesHandler.Convert)

	sync := protected.Group("/sync")
	sync.GET("/status", syncHandler.GetStatus)
	sync.POST("/enable", syncHandler.Enable)
	sync.POST("/disable", syncHandler.Disable)
	sync.POST("/push", syncHandler.Push)
	sync.POST("/pull", syncHandler.Pull)
	sync.GET("/detect", syncHandler.Detect)
	sync.POST("/migrate", syncHandler.Migrate)
	sync.POST("/export-xlsx", syncHandler.ExportWorkbook)
	sync.GET("/history", syncHandler.GetHistory)

	return router
}
