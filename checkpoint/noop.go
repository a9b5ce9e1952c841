package checkpoint

import "context"

type noopStore struct{}

// NewNoopStore returns a store that discards saves and never finds a
// checkpoint. It is used when no checkpoint location is configured, so that
// checkpointing is disabled without failing callers.
func NewNoopStore() Store {
	return &noopStore{}
}

var _ Store = (*noopStore)(nil)

func (*noopStore) Save(ctx context.Context, key string, state any) error {
	return nil
}

func (*noopStore) Load(ctx context.Context, key string, vptr any) error {
	return ErrNotFound
}

func (*noopStore) Delete(ctx context.Context, key string) error {
	return nil
}
