package rbac

const (
	PermCourseManage       = "course:manage"
	PermCourseView         = "course:view"
	PermEnrollmentCreate   = "enrollment:create"
	PermEnrollmentView     = "enrollment:view"
	PermEnrollmentOverride = "enrollment:override"
	PermActivitySubmit     = "activity:submit"
	PermSignatureRecord    = "signature:record"
)

// Default policy. Students reach their own enrollment through owner checks.
var RolePermissions = map[string][]string{
	"student": {
		PermCourseView,
	},
	"instructor": {
		"course:*",
		PermEnrollmentCreate,
		PermEnrollmentView,
	},
	// LMS runtime and other integrations reporting on behalf of learners
	"service": {
		PermCourseView,
		PermEnrollmentCreate,
		PermEnrollmentView,
		PermActivitySubmit,
		PermSignatureRecord,
	},
	"admin": {
		"*",
	},
}
