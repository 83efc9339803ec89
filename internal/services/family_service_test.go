package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/homegrubhub/homegrubhub-be/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent map[string][]websocket.Message
}

func (b *recordingBroadcaster) BroadcastTo(key string, message []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var msg websocket.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		panic(err)
	}
	if b.sent == nil {
		b.sent = map[string][]websocket.Message{}
	}
	b.sent[key] = append(b.sent[key], msg)
}

func (b *recordingBroadcaster) actions(key string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.sent[key] {
		out = append(out, m.Action)
	}
	return out
}

func newFamilyService(t *testing.T) (*FamilyService, *recordingBroadcaster) {
	t.Helper()
	db := newTestDB(t)
	b := &recordingBroadcaster{}
	svc := NewFamilyService(db, NewEventService(db), b)
	svc.now = fixedClock("2024-04-01T12:00:00Z")
	return svc, b
}

func TestFamilyCreateAndJoin(t *testing.T) {
	svc, b := newFamilyService(t)
	ctx := context.Background()

	free := createUser(t, svc.db, "home")
	_, err := svc.Create(ctx, viewerFor(free), "Smiths")
	assert.True(t, apperr.Is(err, apperr.CodeFeatureLocked))

	owner := createUser(t, svc.db, "family")
	family, err := svc.Create(ctx, viewerFor(owner), "Smiths")
	require.NoError(t, err)
	assert.Len(t, family.FamilyCode, 8)
	assert.Regexp(t, "^[A-Z0-9]{8}$", family.FamilyCode)
	assert.Equal(t, 6, family.MaxMembers)
	require.Len(t, family.Members, 1)
	assert.Equal(t, models.RoleAdmin, family.Members[0].Role)
	assert.Equal(t, owner.Username, family.Members[0].Username)

	_, err = svc.Create(ctx, viewerFor(owner), "Again")
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	kid := createUser(t, svc.db, "")
	joined, err := svc.Join(ctx, kid.ID, " "+strings.ToLower(family.FamilyCode)+" ", "child")
	require.NoError(t, err)
	assert.Len(t, joined.Members, 2)
	assert.Equal(t, models.RoleChild, joined.Members[1].Role)
	assert.Equal(t, []string{"member_joined"}, b.actions(FamilyKey(family.ID)))

	_, err = svc.Join(ctx, kid.ID, family.FamilyCode, "")
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
	_, err = svc.Join(ctx, createUser(t, svc.db, "").ID, "NOPE1234", "")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	for i := 0; i < 4; i++ {
		m, err := svc.Join(ctx, createUser(t, svc.db, "").ID, family.FamilyCode, "adult")
		require.NoError(t, err)
		assert.Equal(t, models.RoleParent, m.Members[len(m.Members)-1].Role)
	}
	_, err = svc.Join(ctx, createUser(t, svc.db, "").ID, family.FamilyCode, "")
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	mine, err := svc.Mine(ctx, kid.ID)
	require.NoError(t, err)
	assert.Equal(t, family.ID, mine.ID)
}

func TestFamilyMembership(t *testing.T) {
	svc, _ := newFamilyService(t)
	ctx := context.Background()
	owner := createUser(t, svc.db, "family")
	family, err := svc.Create(ctx, viewerFor(owner), "Jones")
	require.NoError(t, err)
	teen := createUser(t, svc.db, "")
	_, err = svc.Join(ctx, teen.ID, family.FamilyCode, "teen")
	require.NoError(t, err)

	_, err = svc.UpdateRole(ctx, teen.ID, owner.ID, models.RoleChild)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))
	_, err = svc.UpdateRole(ctx, owner.ID, teen.ID, "overlord")
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))

	promoted, err := svc.UpdateRole(ctx, owner.ID, teen.ID, models.RoleParent)
	require.NoError(t, err)
	assert.Equal(t, models.RoleParent, promoted.Role)

	assert.True(t, apperr.Is(svc.Leave(ctx, owner.ID), apperr.CodeValidationFailed))
	require.NoError(t, svc.RemoveMember(ctx, owner.ID, teen.ID))
	_, err = svc.Mine(ctx, teen.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	require.NoError(t, svc.Leave(ctx, owner.ID))
	_, err = svc.Mine(ctx, owner.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestFamilyShoppingList(t *testing.T) {
	svc, b := newFamilyService(t)
	ctx := context.Background()
	owner := createUser(t, svc.db, "family")
	family, err := svc.Create(ctx, viewerFor(owner), "Patels")
	require.NoError(t, err)
	kid := createUser(t, svc.db, "")
	_, err = svc.Join(ctx, kid.ID, family.FamilyCode, "child")
	require.NoError(t, err)

	milk, err := svc.AddItem(ctx, owner.ID, FamilyItemInput{Name: "Milk", Quantity: 2, Unit: "litres"})
	require.NoError(t, err)
	assert.True(t, milk.IsApproved)

	sweets, err := svc.AddItem(ctx, kid.ID, FamilyItemInput{Name: "Sweets"})
	require.NoError(t, err)
	assert.False(t, sweets.IsApproved)
	assert.Equal(t, 1.0, sweets.Quantity)

	_, err = svc.TogglePurchased(ctx, owner.ID, sweets.ID)
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
	_, err = svc.ApproveItem(ctx, kid.ID, sweets.ID)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))

	approved, err := svc.ApproveItem(ctx, owner.ID, sweets.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, owner.ID, *approved.ApprovedBy)

	bought, err := svc.TogglePurchased(ctx, kid.ID, milk.ID)
	require.NoError(t, err)
	assert.True(t, bought.IsPurchased)
	require.NotNil(t, bought.PurchasedBy)

	items, err := svc.ListItems(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Sweets", items[0].Name)

	assert.True(t, apperr.Is(svc.DeleteItem(ctx, kid.ID, milk.ID), apperr.CodeForbidden))
	require.NoError(t, svc.DeleteItem(ctx, kid.ID, sweets.ID))

	assert.Equal(t,
		[]string{"member_joined", "item_added", "item_added", "item_approved", "item_updated", "item_deleted"},
		b.actions(FamilyKey(family.ID)))
}

func TestFamilyMessages(t *testing.T) {
	svc, _ := newFamilyService(t)
	ctx := context.Background()
	owner := createUser(t, svc.db, "family")
	_, err := svc.Create(ctx, viewerFor(owner), "Lees")
	require.NoError(t, err)

	_, err = svc.PostMessage(ctx, owner.ID, "   ")
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))

	for i := 0; i < 55; i++ {
		_, err := svc.PostMessage(ctx, owner.ID, "note")
		require.NoError(t, err)
	}
	last, err := svc.PostMessage(ctx, owner.ID, "dinner at six")
	require.NoError(t, err)

	msgs, err := svc.Messages(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 50)
	assert.Equal(t, last.ID, msgs[len(msgs)-1].ID)
	assert.Equal(t, owner.Username, msgs[0].Username)

	_, err = svc.Messages(ctx, createUser(t, svc.db, "").ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}
