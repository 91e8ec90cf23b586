package service

import (
	"context"
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/telany/faxrelay/internal/errs"
	"github.com/telany/faxrelay/internal/limiter"
	"github.com/telany/faxrelay/internal/model"
	"github.com/telany/faxrelay/internal/repository"
)

type fakeTenants struct {
	tenants []model.Tenant

	registered map[string][]string // domain_uuid -> device ids
	listErr    error
}

var _ repository.TenantRepository = (*fakeTenants)(nil)

func (f *fakeTenants) Create(_ context.Context, t *model.Tenant) error {
	f.tenants = append(f.tenants, *t)
	return nil
}

func (f *fakeTenants) GetByAuth(_ context.Context, authToken, faxUser string) (*model.Tenant, error) {
	for i := range f.tenants {
		t := f.tenants[i]
		if t.Active && t.AuthToken == authToken && t.FaxUser == faxUser {
			c := t
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeTenants) GetByUUID(_ context.Context, id uuid.UUID) (*model.Tenant, error) {
	for i := range f.tenants {
		t := f.tenants[i]
		if t.Active && t.DomainUUID == id {
			c := t
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeTenants) List(context.Context) ([]model.Tenant, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Tenant(nil), f.tenants...), nil
}

func (f *fakeTenants) RegisterDevice(_ context.Context, id uuid.UUID, deviceID string) error {
	if f.registered == nil {
		f.registered = map[string][]string{}
	}
	key := id.String()
	for _, d := range f.registered[key] {
		if d == deviceID {
			return nil
		}
	}
	f.registered[key] = append(f.registered[key], deviceID)
	return nil
}

func (f *fakeTenants) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	for i := range f.tenants {
		if f.tenants[i].DomainUUID == id {
			f.tenants[i].Active = active
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeTenants) Delete(_ context.Context, id uuid.UUID) error {
	for i := range f.tenants {
		if f.tenants[i].DomainUUID == id {
			f.tenants = append(f.tenants[:i], f.tenants[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

type fakeResellers struct {
	envs map[string]model.Envelope
}

var _ repository.ResellerRepository = (*fakeResellers)(nil)

func (f *fakeResellers) Save(_ context.Context, id string, env model.Envelope) error {
	if f.envs == nil {
		f.envs = map[string]model.Envelope{}
	}
	f.envs[id] = env
	return nil
}

func (f *fakeResellers) Get(_ context.Context, id string) (*model.Envelope, error) {
	env, ok := f.envs[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &env, nil
}

func (f *fakeResellers) Delete(_ context.Context, id string) error {
	delete(f.envs, id)
	return nil
}

type fakeBearers struct {
	recs    map[string]*model.BearerRecord
	saveErr error
}

var _ repository.BearerRepository = (*fakeBearers)(nil)

func (f *fakeBearers) Get(_ context.Context, faxUser string) (*model.BearerRecord, error) {
	rec, ok := f.recs[faxUser]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *rec
	return &c, nil
}

func (f *fakeBearers) Save(_ context.Context, rec *model.BearerRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.recs == nil {
		f.recs = map[string]*model.BearerRecord{}
	}
	c := *rec
	f.recs[rec.FaxUser] = &c
	return nil
}

type fakeHistory struct {
	sets map[string]map[string]bool // domain_uuid -> id set
	// order preserves insertion for stable listing
	order  map[string][]string
	addErr error
}

var _ repository.HistoryRepository = (*fakeHistory)(nil)

func (f *fakeHistory) Add(_ context.Context, id uuid.UUID, ids []string) (int, int, error) {
	if f.addErr != nil {
		return 0, 0, f.addErr
	}
	key := id.String()
	if f.sets == nil {
		f.sets = map[string]map[string]bool{}
		f.order = map[string][]string{}
	}
	if f.sets[key] == nil {
		f.sets[key] = map[string]bool{}
	}
	inserted := 0
	for _, x := range ids {
		if !f.sets[key][x] {
			f.sets[key][x] = true
			f.order[key] = append(f.order[key], x)
			inserted++
		}
	}
	return inserted, len(f.sets[key]), nil
}

func (f *fakeHistory) List(_ context.Context, id uuid.UUID, offset, limit int) ([]string, error) {
	all := append([]string(nil), f.order[id.String()]...)
	sort.Strings(all)
	if offset >= len(all) {
		return []string{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeHistory) Count(_ context.Context, id uuid.UUID) (int, error) {
	return len(f.sets[id.String()]), nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}

func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return nil
}

func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, nil
}
