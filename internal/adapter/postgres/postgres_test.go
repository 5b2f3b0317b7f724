//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"movierec/internal/adapter/postgres"
	"movierec/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func dockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "docker", "info").Run() == nil
}

func startPostgres(t *testing.T) string {
	t.Helper()
	if !dockerAvailable() {
		t.Skip("docker not available")
	}

	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "movierec",
				"POSTGRES_PASSWORD": "movierec",
				"POSTGRES_DB":       "movierec",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://movierec:movierec@%s:%s/movierec?sslmode=disable", host, port.Port())
}

func TestStore_Postgres(t *testing.T) {
	s, err := postgres.Open(startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()

	alice, err := s.Create(ctx, "alice", "alice@x.com", "hash")
	require.NoError(t, err)
	_, err = s.Create(ctx, "alice", "ALICE@x.com", "hash")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	for i := 1; i <= 25; i++ {
		_, err := s.AddMovie(ctx, alice.ID, domain.MovieDraft{ExternalID: int64(i), Title: fmt.Sprintf("Movie %02d", i), Status: domain.StatusWatchlist})
		require.NoError(t, err)
	}
	p, err := s.ListMovies(ctx, alice.ID, domain.MovieQuery{Status: domain.StatusWatchlist, PageNumber: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, p.TotalCount)
	require.Len(t, p.Items, 5)
	assert.Equal(t, "Movie 21", p.Items[0].Title)

	p, err = s.ListMovies(ctx, alice.ID, domain.MovieQuery{Filter: "MOVIE 1", PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, 10, p.TotalCount)

	m := p.Items[0]
	updated, err := s.UpdateStatus(ctx, alice.ID, m.ID, domain.StatusLiked)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLiked, updated.Status)

	bob, err := s.Create(ctx, "bob", "bob@x.com", "hash")
	require.NoError(t, err)
	_, err = s.GetMovie(ctx, bob.ID, m.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.DeleteMovie(ctx, bob.ID, m.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err := s.DeleteMovie(ctx, alice.ID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Title, deleted.Title)
	_, err = s.GetMovie(ctx, alice.ID, m.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
