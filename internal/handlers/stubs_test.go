package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/classvault/apiserver/internal/policy"
	"github.com/classvault/apiserver/internal/store"
	"github.com/classvault/apiserver/types"
)

// Minimal in-memory repositories for wiring real services under httptest.

type memUserRepo struct {
	users map[string]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]types.User)}
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (types.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) GetByAccountID(_ context.Context, accountID string) (types.User, error) {
	for _, user := range m.users {
		if user.AccountID == accountID {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = user
	return user, nil
}

func (m *memUserRepo) SetDashboardAccess(_ context.Context, id string, granted bool) error {
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.DashboardAccess = granted
	m.users[id] = user
	return nil
}

func (m *memUserRepo) SetFileAccessKeyword(_ context.Context, id string, keyword *string) error {
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.FileAccessKeyword = keyword
	m.users[id] = user
	return nil
}

func (m *memUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memUserRepo) ListNonStudents(_ context.Context) ([]types.User, error) {
	users := make([]types.User, 0)
	for _, user := range m.users {
		if !user.IsStudent {
			users = append(users, user)
		}
	}
	return users, nil
}

type memSessionRepo struct {
	sessions map[string]types.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]types.Session)}
}

func (m *memSessionRepo) Create(_ context.Context, session types.Session) (types.Session, error) {
	m.sessions[session.Token] = session
	return session, nil
}

func (m *memSessionRepo) GetByToken(_ context.Context, token string) (types.Session, error) {
	if session, ok := m.sessions[token]; ok {
		return session, nil
	}
	return types.Session{}, store.ErrNotFound
}

func (m *memSessionRepo) Delete(_ context.Context, token string) error {
	if _, ok := m.sessions[token]; !ok {
		return store.ErrNotFound
	}
	delete(m.sessions, token)
	return nil
}

func (m *memSessionRepo) DeleteByAccount(_ context.Context, accountID string) error {
	for token, session := range m.sessions {
		if session.AccountID == accountID {
			delete(m.sessions, token)
		}
	}
	return nil
}

type memOTPRepo struct {
	codes map[string]types.OneTimeCode
}

func newMemOTPRepo() *memOTPRepo {
	return &memOTPRepo{codes: make(map[string]types.OneTimeCode)}
}

func (m *memOTPRepo) Upsert(_ context.Context, code types.OneTimeCode) error {
	m.codes[code.AccountID] = code
	return nil
}

func (m *memOTPRepo) Get(_ context.Context, accountID string) (types.OneTimeCode, error) {
	if code, ok := m.codes[accountID]; ok {
		return code, nil
	}
	return types.OneTimeCode{}, store.ErrNotFound
}

func (m *memOTPRepo) IncrementAttempts(_ context.Context, accountID string) (int, error) {
	code, ok := m.codes[accountID]
	if !ok {
		return 0, store.ErrNotFound
	}
	code.Attempts++
	m.codes[accountID] = code
	return code.Attempts, nil
}

func (m *memOTPRepo) Delete(_ context.Context, accountID string) error {
	delete(m.codes, accountID)
	return nil
}

type memFileRepo struct {
	files []types.File
}

func (m *memFileRepo) List(_ context.Context, q types.FileQuery, keyword *string) ([]types.File, error) {
	requester := types.User{FileAccessKeyword: keyword}
	matched := make([]types.File, 0)
	for _, file := range m.files {
		if policy.FileVisible(requester, q, file) {
			matched = append(matched, file)
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (m *memFileRepo) Get(_ context.Context, id string) (types.File, error) {
	for _, file := range m.files {
		if file.ID == id {
			return file, nil
		}
	}
	return types.File{}, store.ErrNotFound
}

func (m *memFileRepo) GetByBucketFileID(_ context.Context, bucketFileID string) (types.File, error) {
	for _, file := range m.files {
		if file.BucketFileID == bucketFileID {
			return file, nil
		}
	}
	return types.File{}, store.ErrNotFound
}

func (m *memFileRepo) GetByOwnerAndName(_ context.Context, ownerID, name string) (types.File, error) {
	for _, file := range m.files {
		if file.OwnerID == ownerID && file.Name == name {
			return file, nil
		}
	}
	return types.File{}, store.ErrNotFound
}

func (m *memFileRepo) Create(_ context.Context, file types.File) (types.File, error) {
	m.files = append(m.files, file)
	return file, nil
}

func (m *memFileRepo) Rename(_ context.Context, id, name string) (types.File, error) {
	for i, file := range m.files {
		if file.ID == id {
			m.files[i].Name = name
			return m.files[i], nil
		}
	}
	return types.File{}, store.ErrNotFound
}

func (m *memFileRepo) SetSharedWith(_ context.Context, id string, emails []string) (types.File, error) {
	for i, file := range m.files {
		if file.ID == id {
			m.files[i].SharedWith = emails
			return m.files[i], nil
		}
	}
	return types.File{}, store.ErrNotFound
}

func (m *memFileRepo) Delete(_ context.Context, id string) error {
	for i, file := range m.files {
		if file.ID == id {
			m.files = append(m.files[:i], m.files[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memFileRepo) Summarize(_ context.Context) (map[string]types.TypeSummary, error) {
	summaries := make(map[string]types.TypeSummary)
	for _, file := range m.files {
		summary := summaries[file.Type]
		summary.Size += file.Size
		summaries[file.Type] = summary
	}
	return summaries, nil
}

type memObjectStorage struct {
	objects map[string][]byte
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: make(map[string][]byte)}
}

func (m *memObjectStorage) EnsureBucket(context.Context) error { return nil }

func (m *memObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStorage) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memObjectStorage) Bucket() string { return "test-bucket" }

// memDispatcher records the last code per email instead of sending mail.
type memDispatcher struct {
	sent map[string]string
}

func newMemDispatcher() *memDispatcher {
	return &memDispatcher{sent: make(map[string]string)}
}

func (m *memDispatcher) DispatchOTP(_ context.Context, email, code string) error {
	m.sent[email] = code
	return nil
}
