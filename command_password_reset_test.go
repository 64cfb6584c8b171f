package readers_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/goliatone/go-repository-bun"
	readers "github.com/spannertools/go-readers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestInitializePasswordResetStagesCredential(t *testing.T) {
	ctx := context.Background()

	reader := newTestReader(t, "sekrit")
	activateTestReader(t, reader)

	rdrs := &MockReaders{}
	rdrs.On("GetByIdentifierTx", mock.Anything, mock.Anything, "pepe.rone").Return(reader, nil).Once()
	rdrs.On("StageResetTx", mock.Anything, mock.Anything, reader.ID,
		mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Return(nil).Once()

	repo := &MockRepositoryManager{}
	repo.On("Readers").Return(rdrs)
	repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).Return(nil).Once()

	notifier := &capturingNotifier{}
	sink := &capturingSink{}

	var resp *readers.InitializePasswordResetResponse

	handler := readers.NewInitializePasswordResetHandler(repo).
		WithNotifier(notifier).
		WithActivitySink(sink).
		WithLogger(testLogger{})

	err := handler.Execute(ctx, readers.InitializePasswordResetMessage{
		Identifier: "pepe.rone",
		OnResponse: func(r *readers.InitializePasswordResetResponse) { resp = r },
	})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.True(t, resp.Found)
	assert.True(t, resp.Success)
	assert.Equal(t, reader, resp.Reader)

	assert.True(t, reader.PendingReset())
	assert.NotEmpty(t, reader.ActivationToken)
	assert.True(t, reader.VerifyCredential("sekrit"))

	n, ok := notifier.last()
	require.True(t, ok)
	assert.Equal(t, readers.NotificationPasswordReset, n.Kind)
	assert.Equal(t, reader.ActivationToken, n.Token)
	assert.NotEmpty(t, n.ProvisionalSecret)
	assert.Equal(t, readers.HashSecret(n.ProvisionalSecret, reader.Salt), reader.ProvisionalPasswordHash)

	assert.Equal(t, []readers.ActivityEventType{readers.ActivityEventPasswordResetRequested}, sink.types())

	rdrs.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestInitializePasswordResetUnknownIdentifier(t *testing.T) {
	ctx := context.Background()

	rdrs := &MockReaders{}
	rdrs.On("GetByIdentifierTx", mock.Anything, mock.Anything, "nobody").
		Return(nil, repository.NewRecordNotFound()).Once()

	repo := &MockRepositoryManager{}
	repo.On("Readers").Return(rdrs)
	repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).Return(nil).Once()

	notifier := &capturingNotifier{}

	var resp *readers.InitializePasswordResetResponse

	handler := readers.NewInitializePasswordResetHandler(repo).
		WithNotifier(notifier).
		WithLogger(testLogger{})

	// the caller learns nothing beyond "not found"; no error, no message
	err := handler.Execute(ctx, readers.InitializePasswordResetMessage{
		Identifier: "nobody",
		OnResponse: func(r *readers.InitializePasswordResetResponse) { resp = r },
	})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.False(t, resp.Found)
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Reader)

	_, delivered := notifier.last()
	assert.False(t, delivered)
}

func TestInitializePasswordResetPendingReader(t *testing.T) {
	ctx := context.Background()

	reader := newTestReader(t, "sekrit")

	rdrs := &MockReaders{}
	rdrs.On("GetByIdentifierTx", mock.Anything, mock.Anything, "pepe.rone").Return(reader, nil).Once()

	repo := &MockRepositoryManager{}
	repo.On("Readers").Return(rdrs)
	repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).Return(nil).Once()

	handler := readers.NewInitializePasswordResetHandler(repo).WithLogger(testLogger{})

	err := handler.Execute(ctx, readers.InitializePasswordResetMessage{
		Identifier: "pepe.rone",
	})

	assert.Equal(t, readers.ErrReaderNotActivated, err)
	assert.False(t, reader.PendingReset())
	rdrs.AssertNotCalled(t, "StageResetTx",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInitializePasswordResetSupersedesPendingReset(t *testing.T) {
	ctx := context.Background()

	reader := newTestReader(t, "sekrit")
	activateTestReader(t, reader)

	rdrs := &MockReaders{}
	rdrs.On("GetByIdentifierTx", mock.Anything, mock.Anything, "pepe.rone").Return(reader, nil).Twice()
	rdrs.On("StageResetTx", mock.Anything, mock.Anything, reader.ID,
		mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Return(nil).Twice()

	repo := &MockRepositoryManager{}
	repo.On("Readers").Return(rdrs)
	repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).Return(nil).Twice()

	notifier := &capturingNotifier{}

	handler := readers.NewInitializePasswordResetHandler(repo).
		WithNotifier(notifier).
		WithLogger(testLogger{})

	msg := readers.InitializePasswordResetMessage{Identifier: "pepe.rone"}

	require.NoError(t, handler.Execute(ctx, msg))
	first, ok := notifier.last()
	require.True(t, ok)

	require.NoError(t, handler.Execute(ctx, msg))
	second, ok := notifier.last()
	require.True(t, ok)

	assert.NotEqual(t, first.Token, second.Token)
	assert.NotEqual(t, first.ProvisionalSecret, second.ProvisionalSecret)

	// only the second staging is live
	assert.Equal(t, second.Token, reader.ActivationToken)
	assert.Equal(t, readers.HashSecret(second.ProvisionalSecret, reader.Salt), reader.ProvisionalPasswordHash)
	assert.False(t, reader.ConfirmReset(first.Token))
	assert.True(t, reader.ConfirmReset(second.Token))
}

func TestFinalizePasswordResetPromotesCredential(t *testing.T) {
	ctx := context.Background()

	reader := newTestReader(t, "sekrit")
	activateTestReader(t, reader)
	require.NoError(t, reader.StageReset("prov-isio-nal1", "reset-token"))

	rdrs := &MockReaders{}
	rdrs.On("GetByIdentifierTx", mock.Anything, mock.Anything, "pepe.rone").Return(reader, nil).Once()
	rdrs.On("PromotePasswordTx", mock.Anything, mock.Anything, reader.ID, mock.AnythingOfType("string")).
		Return(nil).Once()

	repo := &MockRepositoryManager{}
	repo.On("Readers").Return(rdrs)
	repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).Return(nil).Once()

	sink := &capturingSink{}

	handler := readers.NewFinalizePasswordResetHandler(repo).
		WithActivitySink(sink).
		WithLogger(testLogger{})

	err := handler.Execute(ctx, readers.FinalizePasswordResetMessage{
		Identifier: "pepe.rone",
		Token:      "reset-token",
	})
	require.NoError(t, err)

	assert.True(t, reader.VerifyCredential("prov-isio-nal1"))
	assert.False(t, reader.VerifyCredential("sekrit"))
	assert.False(t, reader.PendingReset())
	assert.Empty(t, reader.ActivationToken)

	assert.Equal(t, []readers.ActivityEventType{readers.ActivityEventPasswordResetSuccess}, sink.types())

	rdrs.AssertExpectations(t)
}

func TestFinalizePasswordResetWrongToken(t *testing.T) {
	ctx := context.Background()

	reader := newTestReader(t, "sekrit")
	activateTestReader(t, reader)
	require.NoError(t, reader.StageReset("prov-isio-nal1", "reset-token"))

	rdrs := &MockReaders{}
	rdrs.On("GetByIdentifierTx", mock.Anything, mock.Anything, "pepe.rone").Return(reader, nil).Once()

	repo := &MockRepositoryManager{}
	repo.On("Readers").Return(rdrs)
	repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).Return(nil).Once()

	sink := &capturingSink{}

	handler := readers.NewFinalizePasswordResetHandler(repo).
		WithActivitySink(sink).
		WithLogger(testLogger{})

	err := handler.Execute(ctx, readers.FinalizePasswordResetMessage{
		Identifier: "pepe.rone",
		Token:      "not-the-token",
	})

	assert.Equal(t, readers.ErrTokenMismatch, err)
	assert.True(t, reader.VerifyCredential("sekrit"))
	assert.True(t, reader.PendingReset())
	assert.Empty(t, sink.types())
	rdrs.AssertNotCalled(t, "PromotePasswordTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFinalizePasswordResetUnknownIdentifier(t *testing.T) {
	ctx := context.Background()

	rdrs := &MockReaders{}
	rdrs.On("GetByIdentifierTx", mock.Anything, mock.Anything, "nobody").
		Return(nil, repository.NewRecordNotFound()).Once()

	repo := &MockRepositoryManager{}
	repo.On("Readers").Return(rdrs)
	repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).Return(nil).Once()

	handler := readers.NewFinalizePasswordResetHandler(repo).WithLogger(testLogger{})

	err := handler.Execute(ctx, readers.FinalizePasswordResetMessage{
		Identifier: "nobody",
		Token:      "whatever",
	})

	assert.Equal(t, readers.ErrTokenMismatch, err)
}

func TestFinalizePasswordResetWithoutPendingReset(t *testing.T) {
	ctx := context.Background()

	reader := newTestReader(t, "sekrit")
	activateTestReader(t, reader)

	rdrs := &MockReaders{}
	rdrs.On("GetByIdentifierTx", mock.Anything, mock.Anything, "pepe.rone").Return(reader, nil).Once()

	repo := &MockRepositoryManager{}
	repo.On("Readers").Return(rdrs)
	repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).Return(nil).Once()

	handler := readers.NewFinalizePasswordResetHandler(repo).WithLogger(testLogger{})

	err := handler.Execute(ctx, readers.FinalizePasswordResetMessage{
		Identifier: "pepe.rone",
		Token:      "reset-token",
	})

	assert.Equal(t, readers.ErrTokenMismatch, err)
	assert.True(t, reader.VerifyCredential("sekrit"))
}
