package verification

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	code, err := svc.Issue(ctx, "o1", PhasePickup)
	require.NoError(t, err)
	require.Len(t, code, 5)

	require.NoError(t, svc.Verify(ctx, "o1", PhasePickup, code))

	ok, err := svc.Verified(ctx, "o1", PhasePickup)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCodeShapeFollowsConfiguredLength(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 32; i++ {
		code, err := svc.Issue(ctx, "o1", PhasePickup)
		require.NoError(t, err)
		require.Len(t, code, codeDigits)
		for _, ch := range code {
			require.True(t, ch >= '0' && ch <= '9', "code %q is not all digits", code)
		}
	}
}

func TestVerifyWrongCode(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	code, err := svc.Issue(ctx, "o1", PhaseDropoff)
	require.NoError(t, err)

	wrong := "00000"
	if wrong == code {
		wrong = "00001"
	}
	require.ErrorIs(t, svc.Verify(ctx, "o1", PhaseDropoff, wrong), ErrCodeMismatch)

	// A mismatch does not consume the code.
	require.NoError(t, svc.Verify(ctx, "o1", PhaseDropoff, code))
}

func TestVerifyIdempotent(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	code, err := svc.Issue(ctx, "o1", PhasePickup)
	require.NoError(t, err)

	require.NoError(t, svc.Verify(ctx, "o1", PhasePickup, code))
	require.ErrorIs(t, svc.Verify(ctx, "o1", PhasePickup, code), ErrAlreadyVerified)

	first, err := store.Get(ctx, "o1", PhasePickup)
	require.NoError(t, err)
	stamp := *first.VerifiedAt

	require.ErrorIs(t, svc.Verify(ctx, "o1", PhasePickup, code), ErrAlreadyVerified)
	again, err := store.Get(ctx, "o1", PhasePickup)
	require.NoError(t, err)
	require.Equal(t, stamp, *again.VerifiedAt, "verified_at must never change after first success")
}

func TestIssueOverwritesUnverified(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	first, err := svc.Issue(ctx, "o1", PhasePickup)
	require.NoError(t, err)
	second, err := svc.Issue(ctx, "o1", PhasePickup)
	require.NoError(t, err)

	if first != second {
		require.ErrorIs(t, svc.Verify(ctx, "o1", PhasePickup, first), ErrCodeMismatch)
	}
	require.NoError(t, svc.Verify(ctx, "o1", PhasePickup, second))
}

func TestIssueRefusedAfterVerify(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	code, err := svc.Issue(ctx, "o1", PhaseDropoff)
	require.NoError(t, err)
	require.NoError(t, svc.Verify(ctx, "o1", PhaseDropoff, code))

	_, err = svc.Issue(ctx, "o1", PhaseDropoff)
	require.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestVerifyNoCode(t *testing.T) {
	svc := NewService(NewMemoryStore())
	require.ErrorIs(t, svc.Verify(context.Background(), "o1", PhasePickup, "12345"), ErrNotFound)
}

func TestCodesScopedPerPhase(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	pickup, err := svc.Issue(ctx, "o1", PhasePickup)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, "o1", PhaseDropoff)
	require.NoError(t, err)

	require.NoError(t, svc.Verify(ctx, "o1", PhasePickup, pickup))
	ok, err := svc.Verified(ctx, "o1", PhaseDropoff)
	require.NoError(t, err)
	require.False(t, ok, "verifying pickup must not verify dropoff")
}

// Two racing verifies with the correct code: one success, one AlreadyVerified.
func TestVerifyRace(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	code, err := svc.Issue(ctx, "o1", PhasePickup)
	require.NoError(t, err)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Verify(ctx, "o1", PhasePickup, code)
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyVerified)
	}
	require.Equal(t, 1, success)
}
