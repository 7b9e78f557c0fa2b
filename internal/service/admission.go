package service

import "context"

type admissionKey struct{}

// WithAdmission returns a context that makes an operation call admitted once
// the gate has decided on it, whether it was let in or refused. Transports
// use it to release the next message of a conversation without waiting for
// the whole operation.
func WithAdmission(ctx context.Context, admitted func()) context.Context {
	return context.WithValue(ctx, admissionKey{}, admitted)
}

func signalAdmission(ctx context.Context) {
	if admitted, ok := ctx.Value(admissionKey{}).(func()); ok && admitted != nil {
		admitted()
	}
}
