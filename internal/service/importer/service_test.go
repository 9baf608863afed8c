package importer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/pkg/distlock"
	"github.com/ignite/conference-hub/internal/service/importer"
)

func personal(id string, pd domain.PersonalDataType) domain.FieldDefinition {
	return domain.FieldDefinition{ID: id, Title: id, InputKind: domain.KindText, PersonalDataType: pd, IsEnabled: true}
}

func testForm() *domain.Form {
	return &domain.Form{ID: formID, Title: "Conference", Sections: []domain.Section{{
		ID: "personal", IsEnabled: true, Fields: []domain.FieldDefinition{
			personal("email", domain.PersonalEmail),
			personal("first", domain.PersonalFirstName),
			personal("last", domain.PersonalLastName),
			personal("org", domain.PersonalAffiliation),
			personal("job", domain.PersonalPosition),
			personal("tel", domain.PersonalPhone),
		},
	}}}
}

type fixture struct {
	index     *memIndex
	registrar *fakeRegistrar
	notifier  *recordingNotifier
	locks     *distlock.Provider
	redis     *miniredis.Miniredis
	svc       *importer.Service
}

func newFixture(t *testing.T) *fixture {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	fx := &fixture{index: &memIndex{}, notifier: &recordingNotifier{}, redis: mr}
	fx.registrar = &fakeRegistrar{index: fx.index}
	fx.locks = distlock.NewProvider(client, nil, "import:", time.Minute)
	fx.svc = importer.NewService(staticForms{form: testForm()}, fx.index, fx.registrar, fx.locks, fx.notifier, nil)
	return fx
}

func TestImportUsers(t *testing.T) {
	fx := newFixture(t)
	csv := "John,Doe,ACME Inc.,Regional Manager,+1-202-555-0140,jdoe@example.test\n" +
		"Jane,Smith,ACME Inc.,CEO,,jane@example.test\n" +
		"Billy Bob,Doe,,,,1337@EXAMPLE.test"

	users, err := fx.svc.ImportUsers(context.Background(), strings.NewReader(csv), importer.RegistrationColumns)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "Regional Manager", users[0].Get("position"))
	assert.Equal(t, "", users[1].Get("phone"))
	assert.Equal(t, "1337@example.test", users[2].Email())
}

func TestImportUsers_Errors(t *testing.T) {
	fx := newFixture(t)
	fx.index.users = []domain.User{{ID: "123", Email: "test1@example.test", SecondaryEmails: []string{"test2@example.test"}}}

	tests := []struct {
		name string
		csv  string
		want string
	}{
		{"duplicate email", "Bill,Doe,A,B,,bdoe@example.test\nBob,Doe,A,Boss,,bdoe@example.test", "email address is not unique"},
		{"duplicate user", "Big,Boss,A,B,,test1@example.test\nLittle,Boss,A,B,,test2@EXAMPLE.test", "Row 2: email address belongs to the same user as in row 1"},
		{"missing first name", "Ray,Doe,A,B,,rdoe@example.test\n,Buggy,A,CEO,,buggy@example.test", "Row 2: missing first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.svc.ImportUsers(context.Background(), strings.NewReader(tt.csv), importer.RegistrationColumns)
			require.ErrorIs(t, err, importer.ErrImport)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestImportRegistrations(t *testing.T) {
	fx := newFixture(t)
	csv := "John,Doe,ACME Inc.,Regional Manager,+1-202-555-0140,jdoe@example.test\n" +
		"Jane,Smith,ACME Inc.,CEO,,jane@example.test"

	res, err := fx.svc.ImportRegistrations(context.Background(), formID, strings.NewReader(csv), importer.RegistrationOptions{})
	require.NoError(t, err)
	require.Len(t, res.Registrations, 2)
	assert.Equal(t, "John Doe", res.Registrations[0].FullName())

	require.Len(t, fx.registrar.calls, 2)
	assert.Equal(t, map[string]any{
		"first": "John", "last": "Doe", "org": "ACME Inc.", "job": "Regional Manager",
		"tel": "+1-202-555-0140", "email": "jdoe@example.test",
	}, fx.registrar.calls[0])
	assert.NotContains(t, fx.registrar.calls[1], "tel")
	assert.True(t, fx.registrar.opts[0].Management)
	assert.False(t, fx.redis.Exists("lock:import:"+formID))
}

func TestImportRegistrations_ConflictWritesNothing(t *testing.T) {
	fx := newFixture(t)
	fx.index.addRegistration(formID, "boss@example.test")
	csv := "Jane,Smith,ACME Inc.,CEO,,jane@example.test\nBig,Boss,ACME Inc.,Supreme Leader,+1-202-555-1337,boss@example.test"

	_, err := fx.svc.ImportRegistrations(context.Background(), formID, strings.NewReader(csv), importer.RegistrationOptions{})
	assert.EqualError(t, err, "Row 2: a registration with this email already exists")
	assert.Empty(t, fx.registrar.calls)
}

func TestImportRegistrations_SkipExisting(t *testing.T) {
	fx := newFixture(t)
	fx.index.addRegistration(formID, "boss@example.test")
	csv := "Big,Boss,ACME Inc.,Supreme Leader,,boss@example.test\nJane,Smith,ACME Inc.,CEO,,jane@example.test"

	res, err := fx.svc.ImportRegistrations(context.Background(), formID, strings.NewReader(csv), importer.RegistrationOptions{SkipExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Registrations, 1)
	assert.Equal(t, "jane@example.test", res.Registrations[0].Email)
}

func TestImportRegistrations_FailingRowStoresNothing(t *testing.T) {
	fx := newFixture(t)
	fx.registrar.failAt, fx.registrar.err = 1, errors.New("unique violation")
	csv := "Jane,Smith,,,,jane@example.test\nBob,Doe,,,,bdoe@example.test\nAmy,Wang,,,,awang@example.test"

	_, err := fx.svc.ImportRegistrations(context.Background(), formID, strings.NewReader(csv), importer.RegistrationOptions{})
	assert.EqualError(t, err, "Row 2: unique violation")
	assert.Empty(t, fx.registrar.calls)
	assert.Empty(t, fx.index.regs)
}

func TestImportRegistrations_StorageFailure(t *testing.T) {
	fx := newFixture(t)
	fx.registrar.failAt, fx.registrar.err = -1, errors.New("create registrations: db down")

	_, err := fx.svc.ImportRegistrations(context.Background(), formID, strings.NewReader("Jane,Smith,,,,jane@example.test"), importer.RegistrationOptions{})
	assert.EqualError(t, err, "create registrations: db down")
	assert.Empty(t, fx.index.regs)
}

func TestImportRegistrations_Locked(t *testing.T) {
	fx := newFixture(t)
	held := fx.locks.Lock(formID)
	ok, err := held.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = fx.svc.ImportRegistrations(context.Background(), formID, strings.NewReader("Jane,Smith,,,,jane@example.test"), importer.RegistrationOptions{})
	assert.ErrorIs(t, err, importer.ErrLocked)
	assert.Empty(t, fx.registrar.calls)
}

func TestImportRegistrations_UnknownForm(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.ImportRegistrations(context.Background(), "nope", strings.NewReader("Jane,Smith,,,,jane@example.test"), importer.RegistrationOptions{})
	assert.Error(t, err)
}

func TestImportInvitations(t *testing.T) {
	fx := newFixture(t)
	csv := "Bob,Doe,ACME Inc.,bdoe@example.test\nJane,Smith,ACME Inc.,jsmith@example.test"

	res, err := fx.svc.ImportInvitations(context.Background(), formID, strings.NewReader(csv), importer.InvitationOptions{
		SkipExisting: true, Sender: "noreply@example.test", Subject: "invitation", Body: "Invitation to event",
	})
	require.NoError(t, err)
	assert.Zero(t, res.Skipped)
	require.Len(t, res.Invitations, 2)

	inv := res.Invitations[0]
	assert.Equal(t, "Bob", inv.FirstName)
	assert.Equal(t, "Doe", inv.LastName)
	assert.Equal(t, "ACME Inc.", inv.Affiliation)
	assert.Equal(t, "bdoe@example.test", inv.Email)
	assert.False(t, inv.SkipModeration)
	assert.False(t, inv.SkipAccessCheck)
	assert.Equal(t, domain.InvitationPending, inv.State)
	assert.NotEmpty(t, inv.UUID)

	assert.Len(t, fx.index.invitations, 2)
	require.Len(t, fx.notifier.sent, 2)
	assert.Equal(t, domain.TemplateInvitation, fx.notifier.sent[0].Template)
	assert.Equal(t, "noreply@example.test", fx.notifier.sent[0].ReplyTo)
	assert.Equal(t, "Invitation to event", fx.notifier.sent[0].Context["body"])
}

func TestImportInvitations_SkipsExistingInvitation(t *testing.T) {
	fx := newFixture(t)
	fx.index.invitations = []*domain.Invitation{{FormID: formID, Email: "awang@example.test"}}
	csv := "Amy,Wang,ACME Inc.,awang@example.test\nJane,Smith,ACME Inc.,jsmith@example.test"

	res, err := fx.svc.ImportInvitations(context.Background(), formID, strings.NewReader(csv), importer.InvitationOptions{
		SkipExisting: true, SkipModeration: true, SkipAccessCheck: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Invitations, 1)
	assert.Equal(t, "jsmith@example.test", res.Invitations[0].Email)
	assert.True(t, res.Invitations[0].SkipModeration)
	assert.True(t, res.Invitations[0].SkipAccessCheck)
	assert.Len(t, fx.notifier.sent, 1)
}

func TestImportInvitations_AllSkipped(t *testing.T) {
	fx := newFixture(t)
	fx.index.addRegistration(formID, "boss@example.test")

	res, err := fx.svc.ImportInvitations(context.Background(), formID, strings.NewReader("Big,Boss,ACME,boss@example.test"), importer.InvitationOptions{SkipExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Invitations)
	assert.Empty(t, fx.notifier.sent)
}

func TestImportInvitations_Errors(t *testing.T) {
	fx := newFixture(t)
	fx.index.users = []domain.User{{ID: "u1", Email: "dummy@example.test", SecondaryEmails: []string{"alias@example.test"}}}
	fx.index.addRegistration(formID, "dummy@example.test")
	fx.index.addRegistration(formID, "boss@example.test")
	fx.index.invitations = []*domain.Invitation{{FormID: formID, Email: "bdoe@example.test"}}

	tests := []struct {
		email string
		want  string
	}{
		{"boss@example.test", "Row 1: a registration with this email already exists"},
		{"alias@example.test", "Row 1: a registration for this user already exists"},
		{"bdoe@example.test", "Row 1: an invitation for this user already exists"},
	}
	for _, tt := range tests {
		_, err := fx.svc.ImportInvitations(context.Background(), formID, strings.NewReader("Big,Boss,ACME Inc.,"+tt.email), importer.InvitationOptions{})
		assert.EqualError(t, err, tt.want)
	}
	assert.Empty(t, fx.notifier.sent)
}
