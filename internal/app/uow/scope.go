package uow

import "context"

type contextInjector interface {
	InjectContext(context.Context) context.Context
}

// Scope is a unit of work joined from the context or started on demand.
// Commit and Close only act on units the scope started itself.
type Scope struct {
	Unit UnitOfWork

	owned     bool
	committed bool
	ctx       context.Context
}

// Enter returns the unit of work already in ctx or begins a new one with opts.
// The returned context must be used for repository calls.
func Enter(ctx context.Context, factory UoWFactory, opts TxOptions) (*Scope, context.Context, error) {
	if unit, ok := FromContext(ctx); ok {
		return &Scope{Unit: unit, ctx: ctx}, ctx, nil
	}
	if factory == nil {
		return nil, ctx, ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, ctx, err
	}
	execCtx := ctx
	if injector, ok := unit.(contextInjector); ok {
		execCtx = injector.InjectContext(ctx)
	}
	execCtx = ContextWithUnitOfWork(execCtx, unit)
	return &Scope{Unit: unit, owned: true, ctx: execCtx}, execCtx, nil
}

// InjectSession prepares ctx for a unit started outside of Enter.
func InjectSession(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(contextInjector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}

func (s *Scope) Commit() error {
	if !s.owned || s.committed {
		return nil
	}
	if err := s.Unit.Commit(s.ctx); err != nil {
		return err
	}
	s.committed = true
	return nil
}

// Close rolls back an owned unit that was not committed.
func (s *Scope) Close() {
	if s == nil || !s.owned || s.committed {
		return
	}
	_ = s.Unit.Rollback(s.ctx)
}
