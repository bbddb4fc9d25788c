package auth

import "context"

type subjectKey struct{}

// WithSubject stores the verified token subject. For learners it is the student id.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey{}, sub)
}

// SubjectFromContext returns "" when the request carried no verified token.
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey{}).(string)
	return sub
}
