package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"time"

	"github.com/classvault/apiserver/internal/policy"
	"github.com/classvault/apiserver/internal/store"
	"github.com/classvault/apiserver/types"
)

// In-memory stand-ins for the repositories, mirroring the store layer's
// contracts (including the ErrNotFound sentinel).

type fakeUserRepo struct {
	users     map[string]types.User // keyed by profile id
	listCalls int
	failWith  error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]types.User)}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (types.User, error) {
	if user, ok := f.users[id]; ok {
		return user, nil
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByAccountID(_ context.Context, accountID string) (types.User, error) {
	for _, user := range f.users {
		if user.AccountID == accountID {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) SetDashboardAccess(_ context.Context, id string, granted bool) error {
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.DashboardAccess = granted
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) SetFileAccessKeyword(_ context.Context, id string, keyword *string) error {
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.FileAccessKeyword = keyword
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id string) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) ListNonStudents(_ context.Context) ([]types.User, error) {
	f.listCalls++
	users := make([]types.User, 0)
	for _, user := range f.users {
		if !user.IsStudent {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

type fakeSessionRepo struct {
	sessions map[string]types.Session
	failWith error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]types.Session)}
}

func (f *fakeSessionRepo) Create(_ context.Context, session types.Session) (types.Session, error) {
	f.sessions[session.Token] = session
	return session, nil
}

func (f *fakeSessionRepo) GetByToken(_ context.Context, token string) (types.Session, error) {
	if session, ok := f.sessions[token]; ok {
		return session, nil
	}
	return types.Session{}, store.ErrNotFound
}

func (f *fakeSessionRepo) Delete(_ context.Context, token string) error {
	if _, ok := f.sessions[token]; !ok {
		return store.ErrNotFound
	}
	delete(f.sessions, token)
	return nil
}

func (f *fakeSessionRepo) DeleteByAccount(_ context.Context, accountID string) error {
	if f.failWith != nil {
		return f.failWith
	}
	for token, session := range f.sessions {
		if session.AccountID == accountID {
			delete(f.sessions, token)
		}
	}
	return nil
}

type fakeOTPRepo struct {
	codes    map[string]types.OneTimeCode
	failWith error
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{codes: make(map[string]types.OneTimeCode)}
}

func (f *fakeOTPRepo) Upsert(_ context.Context, code types.OneTimeCode) error {
	f.codes[code.AccountID] = code
	return nil
}

func (f *fakeOTPRepo) Get(_ context.Context, accountID string) (types.OneTimeCode, error) {
	if code, ok := f.codes[accountID]; ok {
		return code, nil
	}
	return types.OneTimeCode{}, store.ErrNotFound
}

func (f *fakeOTPRepo) IncrementAttempts(_ context.Context, accountID string) (int, error) {
	code, ok := f.codes[accountID]
	if !ok {
		return 0, store.ErrNotFound
	}
	code.Attempts++
	f.codes[accountID] = code
	return code.Attempts, nil
}

func (f *fakeOTPRepo) Delete(_ context.Context, accountID string) error {
	if f.failWith != nil {
		return f.failWith
	}
	delete(f.codes, accountID)
	return nil
}

// fakeDispatcher captures dispatched codes so tests can replay them.
type fakeDispatcher struct {
	sent     map[string]string // email -> last code
	failWith error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{sent: make(map[string]string)}
}

func (f *fakeDispatcher) DispatchOTP(_ context.Context, email, code string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.sent[email] = code
	return nil
}

type fakeFileRepo struct {
	files        []types.File
	lastKeyword  *string
	createErr    error
	summarizeMap map[string]types.TypeSummary
}

func (f *fakeFileRepo) List(_ context.Context, q types.FileQuery, keyword *string) ([]types.File, error) {
	f.lastKeyword = keyword
	requester := types.User{FileAccessKeyword: keyword}
	matched := make([]types.File, 0)
	for _, file := range f.files {
		if policy.FileVisible(requester, q, file) {
			matched = append(matched, file)
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (f *fakeFileRepo) Get(_ context.Context, id string) (types.File, error) {
	for _, file := range f.files {
		if file.ID == id {
			return file, nil
		}
	}
	return types.File{}, store.ErrNotFound
}

func (f *fakeFileRepo) GetByBucketFileID(_ context.Context, bucketFileID string) (types.File, error) {
	for _, file := range f.files {
		if file.BucketFileID == bucketFileID {
			return file, nil
		}
	}
	return types.File{}, store.ErrNotFound
}

func (f *fakeFileRepo) GetByOwnerAndName(_ context.Context, ownerID, name string) (types.File, error) {
	for _, file := range f.files {
		if file.OwnerID == ownerID && file.Name == name {
			return file, nil
		}
	}
	return types.File{}, store.ErrNotFound
}

func (f *fakeFileRepo) Create(_ context.Context, file types.File) (types.File, error) {
	if f.createErr != nil {
		return types.File{}, f.createErr
	}
	f.files = append(f.files, file)
	return file, nil
}

func (f *fakeFileRepo) Rename(_ context.Context, id, name string) (types.File, error) {
	for i, file := range f.files {
		if file.ID == id {
			f.files[i].Name = name
			return f.files[i], nil
		}
	}
	return types.File{}, store.ErrNotFound
}

func (f *fakeFileRepo) SetSharedWith(_ context.Context, id string, emails []string) (types.File, error) {
	for i, file := range f.files {
		if file.ID == id {
			f.files[i].SharedWith = emails
			return f.files[i], nil
		}
	}
	return types.File{}, store.ErrNotFound
}

func (f *fakeFileRepo) Delete(_ context.Context, id string) error {
	for i, file := range f.files {
		if file.ID == id {
			f.files = append(f.files[:i], f.files[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeFileRepo) Summarize(_ context.Context) (map[string]types.TypeSummary, error) {
	return f.summarizeMap, nil
}

// fakeObjectStorage implements storage.ObjectStorage in memory.
type fakeObjectStorage struct {
	objects map[string][]byte
	putErr  error
	deleted []string
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: make(map[string][]byte)}
}

func (f *fakeObjectStorage) EnsureBucket(context.Context) error { return nil }

func (f *fakeObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStorage) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeObjectStorage) Bucket() string { return "test-bucket" }
