// Package router assembles the HTTP route table.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/student-record-api/internal/handler"
	"github.com/noah-isme/student-record-api/internal/middleware"
	"github.com/noah-isme/student-record-api/internal/service"
	"github.com/noah-isme/student-record-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/student-record-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/student-record-api/pkg/middleware/requestid"
	"github.com/noah-isme/student-record-api/pkg/reporter"
)

const roleAdmin = "admin"

// Handlers bundles the HTTP handlers mounted by New.
type Handlers struct {
	Auth      *handler.AuthHandler
	Course    *handler.CourseHandler
	Student   *handler.StudentHandler
	Exam      *handler.ExamHandler
	Dashboard *handler.DashboardHandler
	Report    *handler.ReportHandler
	Metrics   *handler.MetricsHandler
}

// Options carries the shared middleware dependencies.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	Authenticator  middleware.Authenticator
	Audit          middleware.AuditWriter
	Metrics        *service.MetricsService
	Reporter       reporter.Reporter
	Logger         *zap.Logger
}

// New builds the engine with the global middleware chain and every API route.
func New(h Handlers, opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rep := opts.Reporter
	if rep == nil {
		rep = reporter.Nop{}
	}

	r := gin.New()
	r.Use(middleware.ReportErrors(rep, log))
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	prefix := opts.APIPrefix
	if prefix == "" {
		prefix = "/api"
	}
	api := r.Group(prefix)

	authenticated := middleware.JWT(opts.Authenticator)
	adminOnly := middleware.RBAC(roleAdmin)
	selfOrAdmin := middleware.RBAC(roleAdmin, middleware.RoleSelf)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(opts.Audit, log, action, resource)
	}

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/forgot-password", h.Auth.ForgotPassword)
	auth.POST("/reset-password/:token", h.Auth.ResetPassword)
	auth.POST("/register", authenticated, adminOnly, audit("CREATE", "user"), h.Auth.Register)
	auth.PUT("/change-password", authenticated, h.Auth.ChangePassword)
	auth.GET("/me", authenticated, h.Auth.Me)

	courses := api.Group("/courses", authenticated)
	courses.GET("", h.Course.List)
	courses.GET("/:id", h.Course.Get)
	courses.POST("", adminOnly, audit("CREATE", "course"), h.Course.Create)
	courses.PUT("/:id", adminOnly, audit("UPDATE", "course"), h.Course.Update)
	courses.DELETE("/:id", adminOnly, audit("DELETE", "course"), h.Course.Delete)
	courses.POST("/:id/subjects", adminOnly, audit("CREATE", "subject"), h.Course.AddSubject)
	courses.PUT("/:id/subjects/:semester/:code", adminOnly, audit("UPDATE", "subject"), h.Course.UpdateSubject)
	courses.DELETE("/:id/subjects/:semester/:code", adminOnly, audit("DELETE", "subject"), h.Course.DeleteSubject)

	students := api.Group("/students", authenticated)
	students.GET("", adminOnly, h.Student.List)
	students.GET("/batches", h.Student.Batches)
	students.GET("/:id", selfOrAdmin, h.Student.Get)
	students.PUT("/:id", adminOnly, audit("UPDATE", "student"), h.Student.Update)
	students.DELETE("/:id", adminOnly, audit("DELETE", "student"), h.Student.Delete)

	exams := api.Group("/exams", authenticated)
	exams.POST("/bulk", adminOnly, audit("UPSERT", "marks"), h.Exam.SaveBulk)
	exams.GET("/subject-marks", adminOnly, h.Exam.SubjectMarks)
	exams.GET("/student/:studentId", selfOrAdmin, h.Exam.StudentResults)

	api.GET("/dashboard/stats", authenticated, h.Dashboard.Stats)

	reports := api.Group("/reports", authenticated)
	reports.GET("/students/:studentId/transcript", selfOrAdmin, h.Report.Transcript)
	reports.GET("/subject-marks", adminOnly, h.Report.SubjectMarks)

	api.GET("/metrics/summary", authenticated, adminOnly, h.Metrics.Summary)

	return r
}
