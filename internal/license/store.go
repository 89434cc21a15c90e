package license

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// SettingsStore is the key-value settings backend, addressed by namespace
// and field. Values are raw JSON. Get on a missing field returns nil, false,
// nil. Writers race with last-write-wins semantics.
type SettingsStore interface {
	Get(ctx context.Context, namespace, field string) (json.RawMessage, bool, error)
	Set(ctx context.Context, namespace, field string, value json.RawMessage) error
	Delete(ctx context.Context, namespace, field string) error
}

// Beta opt-ins live in the shop settings, not in the license record.
const (
	shopSettingsNamespace = "edd_settings"
	enabledBetasField     = "enabled_betas"
)

// Record is the persisted license state of one product.
type Record struct {
	Key     string
	Details Details
}

// LoadRecord reads the license record of shortName. Missing fields yield
// zero values.
func LoadRecord(ctx context.Context, store SettingsStore, shortName string) (Record, error) {
	var rec Record
	key, err := loadKey(ctx, store, shortName)
	if err != nil {
		return rec, err
	}
	details, err := loadDetails(ctx, store, shortName)
	if err != nil {
		return rec, err
	}
	rec.Key = key
	rec.Details = details
	return rec, nil
}

func loadKey(ctx context.Context, store SettingsStore, shortName string) (string, error) {
	raw, ok, err := store.Get(ctx, Namespace(shortName), fieldKey)
	if err != nil {
		return "", fmt.Errorf("failed to read license key of %s: %w", shortName, err)
	}
	if !ok {
		return "", nil
	}
	var key string
	if err := json.Unmarshal(raw, &key); err != nil {
		// A non-string key is treated like no key at all.
		return "", nil
	}
	return key, nil
}

func loadDetails(ctx context.Context, store SettingsStore, shortName string) (Details, error) {
	raw, ok, err := store.Get(ctx, Namespace(shortName), fieldDetails)
	if err != nil {
		return nil, fmt.Errorf("failed to read license details of %s: %w", shortName, err)
	}
	if !ok {
		return nil, nil
	}
	return DecodeDetails(raw), nil
}

func saveKey(ctx context.Context, store SettingsStore, shortName, key string) error {
	raw, err := json.Marshal(key)
	if err != nil {
		return err
	}
	if err := store.Set(ctx, Namespace(shortName), fieldKey, raw); err != nil {
		return fmt.Errorf("failed to save license key of %s: %w", shortName, err)
	}
	return nil
}

func saveDetails(ctx context.Context, store SettingsStore, shortName string, details Details) error {
	raw, err := details.MarshalJSON()
	if err != nil {
		return err
	}
	if err := store.Set(ctx, Namespace(shortName), fieldDetails, raw); err != nil {
		return fmt.Errorf("failed to save license details of %s: %w", shortName, err)
	}
	return nil
}

func deleteField(ctx context.Context, store SettingsStore, shortName, field string) error {
	if err := store.Delete(ctx, Namespace(shortName), field); err != nil {
		return fmt.Errorf("failed to delete license %s of %s: %w", field, shortName, err)
	}
	return nil
}

// HasBetaSupport reports whether the shop owner opted shortName into beta
// releases.
func HasBetaSupport(ctx context.Context, store SettingsStore, shortName string) (bool, error) {
	raw, ok, err := store.Get(ctx, shopSettingsNamespace, enabledBetasField)
	if err != nil {
		return false, fmt.Errorf("failed to read beta settings: %w", err)
	}
	if !ok {
		return false, nil
	}
	var betas []string
	if err := json.Unmarshal(raw, &betas); err != nil {
		return false, nil
	}
	return slices.Contains(betas, shortName), nil
}

// SetBetaSupport opts shortName in or out of beta releases.
func SetBetaSupport(ctx context.Context, store SettingsStore, shortName string, enabled bool) error {
	raw, ok, err := store.Get(ctx, shopSettingsNamespace, enabledBetasField)
	if err != nil {
		return fmt.Errorf("failed to read beta settings: %w", err)
	}
	var betas []string
	if ok {
		_ = json.Unmarshal(raw, &betas)
	}
	betas = slices.DeleteFunc(betas, func(s string) bool { return s == shortName })
	if enabled {
		betas = append(betas, shortName)
	}
	slices.Sort(betas)
	out, err := json.Marshal(betas)
	if err != nil {
		return err
	}
	return store.Set(ctx, shopSettingsNamespace, enabledBetasField, out)
}
