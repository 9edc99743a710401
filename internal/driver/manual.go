package driver

import "context"

// ManualDriver is for nodes whose power is toggled by a human. Every
// change is accepted and assumed to have been carried out; nothing can
// be queried.
type ManualDriver struct{}

func NewManualDriver() *ManualDriver { return &ManualDriver{} }

func (d *ManualDriver) Name() string { return "manual" }

func (d *ManualDriver) Queryable() bool { return false }

func (d *ManualDriver) DetectMissingPackages() []string { return nil }

func (d *ManualDriver) On(ctx context.Context, systemID string, pctx map[string]string) error {
	return nil
}

func (d *ManualDriver) Off(ctx context.Context, systemID string, pctx map[string]string) error {
	return nil
}

func (d *ManualDriver) Cycle(ctx context.Context, systemID string, pctx map[string]string) error {
	return nil
}

func (d *ManualDriver) Query(ctx context.Context, systemID string, pctx map[string]string) (State, error) {
	return StateUnknown, NewError(KindSetting, "manual driver cannot query power state")
}

var _ Driver = (*ManualDriver)(nil)
