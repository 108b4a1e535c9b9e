package v1

import (
	"github.com/gin-gonic/gin"
)

// DocumentRouteHandler defines the lifecycle endpoints of /documents.
type DocumentRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	Issue(c *gin.Context)
	ChangeStatus(c *gin.Context)
	Convert(c *gin.Context)
	NextNumber(c *gin.Context)
	Integrity(c *gin.Context)
	Workflow(c *gin.Context)
}

// BillingRouteHandler defines the payment and deposit endpoints.
type BillingRouteHandler interface {
	ListPayments(c *gin.Context)
	RecordPayment(c *gin.Context)
	DeletePayment(c *gin.Context)
	CreateDeposit(c *gin.Context)
	DepositSummary(c *gin.Context)
	CreateFinalInvoice(c *gin.Context)
}

// RegisterDocumentRoutes registers CRUD and lifecycle routes on a documents group.
// The static next-number route sits beside /:id; gin matches it first.
func RegisterDocumentRoutes(group *gin.RouterGroup, handler DocumentRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/next-number", handler.NextNumber)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)
	group.POST("/:id/issue", handler.Issue)
	group.PUT("/:id/status", handler.ChangeStatus)
	group.POST("/:id/convert", handler.Convert)
	group.GET("/:id/integrity", handler.Integrity)
	group.GET("/:id/workflow", handler.Workflow)
}

// RegisterBillingRoutes registers payment and deposit routes on a documents group.
func RegisterBillingRoutes(group *gin.RouterGroup, handler BillingRouteHandler) {
	group.GET("/:id/payments", handler.ListPayments)
	group.POST("/:id/payments", handler.RecordPayment)
	group.DELETE("/:id/payments/:paymentId", handler.DeletePayment)
	group.POST("/:id/deposit-invoice", handler.CreateDeposit)
	group.GET("/:id/deposit-invoice", handler.DepositSummary)
	group.POST("/:id/final-invoice", handler.CreateFinalInvoice)
}
