package routes

import (
	"time"

	"github.com/campusbite/canteen/app/controllers"
	"github.com/campusbite/canteen/pkg/ctx"
	"github.com/campusbite/canteen/pkg/middleware"
	"github.com/campusbite/canteen/pkg/rbac"
	"github.com/campusbite/canteen/pkg/router"
)

// Controllers is everything the API routes dispatch to.
type Controllers struct {
	Auth          *controllers.AuthController
	Shops         *controllers.ShopController
	Orders        *controllers.OrderController
	Notifications *controllers.NotificationController
	Uploads       *controllers.UploadController
	Payments      *controllers.PaymentController
}

func RegisterAPI(r *router.Router, c Controllers) {
	api := r.Group("/api")

	guest := api.Group("/auth", middleware.RateLimit(20, time.Minute))
	guest.Post("/register", "auth.register", ctx.Wrap(c.Auth.Register))
	guest.Post("/login", "auth.login", ctx.Wrap(c.Auth.Login))

	user := api.Group("", middleware.AuthMiddleware)
	user.Get("/me", "auth.me", ctx.Wrap(c.Auth.Me))
	user.Get("/shops", "shops.index", ctx.Wrap(c.Shops.Index))
	user.Get("/shops/{id}", "shops.show", ctx.Wrap(c.Shops.Show))
	user.Get("/notifications", "notifications.index", ctx.Wrap(c.Notifications.Index))
	user.Patch("/notifications/{id}/read", "notifications.read", ctx.Wrap(c.Notifications.MarkRead))
	user.Post("/uploads/image", "uploads.image", ctx.Wrap(c.Uploads.Image))

	// Customers may only cancel their own pending orders; the service
	// enforces who may make which move.
	user.Patch("/orders/{id}/status", "orders.status", ctx.Wrap(c.Orders.UpdateStatus))

	customer := user.Group("", rbac.Customer)
	customer.Get("/orders", "orders.index", ctx.Wrap(c.Orders.Index))
	customer.Post("/orders", "orders.store", ctx.Wrap(c.Orders.Store))
	customer.Post("/payments/stripe/intent", "payments.stripe.intent", ctx.Wrap(c.Payments.StripeIntent))
	customer.Post("/payments/stripe/confirm", "payments.stripe.confirm", ctx.Wrap(c.Payments.StripeConfirm))
	customer.Post("/payments/razorpay/order", "payments.razorpay.order", ctx.Wrap(c.Payments.RazorpayOrder))
	customer.Post("/payments/razorpay/verify", "payments.razorpay.verify", ctx.Wrap(c.Payments.RazorpayVerify))

	staff := user.Group("", rbac.Staff)
	staff.Post("/shops", "shops.store", ctx.Wrap(c.Shops.Store))
	staff.Put("/shops/{id}", "shops.update", ctx.Wrap(c.Shops.Update))
	staff.Delete("/shops/{id}", "shops.destroy", ctx.Wrap(c.Shops.Destroy))
	staff.Get("/shopkeeper/shops", "shopkeeper.shops", ctx.Wrap(c.Shops.Mine))
	staff.Get("/shopkeeper/orders", "shopkeeper.orders", ctx.Wrap(c.Orders.Shopkeeper))
	staff.Post("/payments/razorpay/refund", "payments.razorpay.refund", ctx.Wrap(c.Payments.RazorpayRefund))
}
