package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	authmw "github.com/mind-engage/mindengage-completion/internal/auth/middleware"
	"github.com/mind-engage/mindengage-completion/internal/metrics"
	"github.com/mind-engage/mindengage-completion/internal/rbac"
)

type Deps struct {
	Courses     CourseStore
	Enrollments EnrollmentService
	Verifier    *authmw.Verifier
	Audit       AuditReader       // optional; mounts .../audit
	Signatures  SignatureRecorder // optional; mounts /students/{studentID}/signature
	Metrics     *metrics.Metrics
	Log         *zap.Logger
	CORSOrigins []string
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Verifier))

		pr.Route("/courses/{courseID}", func(cr chi.Router) {
			cr.With(rbac.Require(rbac.PermCourseManage)).Put("/", PutCourseHandler(d.Courses, log))
			cr.With(rbac.Require(rbac.PermCourseView)).Get("/", GetCourseHandler(d.Courses, log))
			cr.With(rbac.Require(rbac.PermEnrollmentCreate)).Post("/enrollments", EnrollHandler(d.Enrollments, log))

			cr.Route("/enrollments/{studentID}", func(er chi.Router) {
				er.With(ownerOr(rbac.PermEnrollmentView)).Get("/", GetEnrollmentHandler(d.Enrollments, log))
				er.With(ownerOr(rbac.PermEnrollmentView)).Get("/certificate", CertificateHandler(d.Enrollments, log))
				er.With(ownerOr(rbac.PermActivitySubmit)).Post("/quiz", SubmitQuizHandler(d.Enrollments, log))
				er.With(ownerOr(rbac.PermActivitySubmit)).Post("/scorm", ReportScormHandler(d.Enrollments, log))
				er.With(ownerOr(rbac.PermActivitySubmit)).Post("/recheck", RecheckHandler(d.Enrollments, log))
				er.With(rbac.Require(rbac.PermEnrollmentOverride)).Post("/override", OverrideHandler(d.Enrollments, log))
				if d.Audit != nil {
					er.With(rbac.Require(rbac.PermEnrollmentView)).Get("/audit", AuditHandler(d.Audit, log))
				}
			})
		})

		if d.Signatures != nil {
			pr.With(ownerOr(rbac.PermSignatureRecord)).Put("/students/{studentID}/signature", RecordSignatureHandler(d.Signatures, log))
		}
	})
	return r
}

// ownerOr lets students act on their own enrollment.
func ownerOr(perm string) func(http.Handler) http.Handler {
	return rbac.RequireOwnerOr(perm, func(r *http.Request) bool {
		sub := authmw.SubjectFromContext(r.Context())
		return sub != "" && sub == chi.URLParam(r, "studentID")
	})
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
