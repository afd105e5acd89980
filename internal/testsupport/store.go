package testsupport

import (
	"context"
	"testing"

	"bindery/internal/config"
	"bindery/internal/stagecfg"
	"bindery/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}

// SeedClient creates a client for tests.
func SeedClient(t testing.TB, st *store.Store, name string) *store.Client {
	t.Helper()
	client, err := st.CreateClient(context.Background(), name, "")
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return client
}

// SeedProject creates a project with the full canonical workflow unless a
// workflow is supplied.
func SeedProject(t testing.TB, st *store.Store, name string, clientID int64, workflow ...stagecfg.Key) *store.Project {
	t.Helper()
	if len(workflow) == 0 {
		for _, stage := range stagecfg.Sequence() {
			workflow = append(workflow, stage.Key)
		}
	}
	project, err := st.CreateProject(context.Background(), name, clientID, workflow)
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return project
}

// SeedUser creates an operator account with the given permissions.
func SeedUser(t testing.TB, st *store.Store, name string, permissions ...string) *store.User {
	t.Helper()
	user, err := st.CreateUser(context.Background(), &store.User{
		Name:        name,
		Role:        "operator",
		Permissions: permissions,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedStorage creates a storage location.
func SeedStorage(t testing.TB, st *store.Store, name, ip string) *store.Storage {
	t.Helper()
	storage, err := st.CreateStorage(context.Background(), name, ip, "/mnt/"+name)
	if err != nil {
		t.Fatalf("seed storage: %v", err)
	}
	return storage
}

// SeedBook creates a book in the given project. An empty status leaves the
// book at the start of the workflow.
func SeedBook(t testing.TB, st *store.Store, projectID int64, name, status string) *store.Book {
	t.Helper()
	book, err := st.CreateBook(context.Background(), &store.Book{
		Name:      name,
		ProjectID: projectID,
		Status:    status,
	})
	if err != nil {
		t.Fatalf("seed book: %v", err)
	}
	return book
}
