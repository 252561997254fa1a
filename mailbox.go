package tempmail

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pro004/tempmail/archive"
	"github.com/pro004/tempmail/directory"
	"github.com/pro004/tempmail/mailtm"
)

// ownerSession is the default implementation of Session.
// It is a thin handle: all state lives in the service, so handles are
// cheap to create and safe to discard.
type ownerSession struct {
	ownerID      string
	service      *service
	validOwnerID bool
}

// OwnerID returns the owner this session client operates for.
func (m *ownerSession) OwnerID() string {
	return m.ownerID
}

func (m *ownerSession) isConnected() bool {
	return atomic.LoadInt32(&m.service.state) == stateConnected
}

// checkAccess validates that operations can proceed.
func (m *ownerSession) checkAccess() error {
	if !m.isConnected() {
		return ErrNotConnected
	}
	if !m.validOwnerID {
		return ErrInvalidOwnerID
	}
	return nil
}

// lockOwner acquires the owner's mutation lock. Every operation that
// reads the binding and then issues a remote call holds it for the
// whole sequence, so concurrent mutations for one owner serialize and
// the directory never interleaves half-finished updates.
func (m *ownerSession) lockOwner() func() {
	v, _ := m.service.ownerLocks.LoadOrStore(m.ownerID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// acquireRemote takes a slot from the shared remote-call semaphore.
func (m *ownerSession) acquireRemote(ctx context.Context) (func(), error) {
	if err := m.service.remoteSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { m.service.remoteSem.Release(1) }, nil
}

// active returns the owner's current session under the caller's lock.
func (m *ownerSession) active() (directory.Session, bool) {
	return m.service.dir.Get(m.ownerID, m.service.opts.clock())
}

// Active returns the owner's current session, or ErrNoActiveSession
// when no address is bound or the binding has expired.
func (m *ownerSession) Active(ctx context.Context) (directory.Session, error) {
	if err := m.checkAccess(); err != nil {
		return directory.Session{}, err
	}
	sess, ok := m.active()
	if !ok {
		return directory.Session{}, ErrNoActiveSession
	}
	return sess, nil
}

// Generate binds the owner to a fresh disposable address. Any existing
// binding is replaced; the old remote account is orphaned, not cleaned
// up, and dies on the remote side on its own schedule.
func (m *ownerSession) Generate(ctx context.Context) (directory.Session, error) {
	if err := m.checkAccess(); err != nil {
		return directory.Session{}, err
	}

	// Setup tracing
	ctx, endSpan := m.service.otel.startSpan(ctx, "tempmail.generate",
		attribute.String("owner_id", m.ownerID),
	)
	start := time.Now()
	var genErr error
	var replaced bool
	defer func() {
		endSpan(genErr)
		m.service.otel.recordGenerate(ctx, time.Since(start), replaced, genErr)
	}()

	unlock := m.lockOwner()
	defer unlock()

	prev, hadPrev := m.active()
	replaced = hadPrev

	release, err := m.acquireRemote(ctx)
	if err != nil {
		genErr = err
		return directory.Session{}, genErr
	}
	acct, err := m.service.mail.CreateAccount(ctx)
	release()
	if err != nil {
		// The old binding, if any, stays untouched on failure.
		genErr = remoteError("generate", err)
		return directory.Session{}, genErr
	}

	// Stamp the session at completion time, not call time, so the full
	// TTL starts after the slow remote step is done.
	sess := directory.Session{
		OwnerID:   m.ownerID,
		Address:   acct.Address,
		Account:   acct,
		CreatedAt: m.service.opts.clock(),
	}
	m.service.dir.Put(m.ownerID, sess)

	m.service.logger.Info("generated address",
		"owner", m.ownerID,
		"address", acct.Address,
		"replaced", replaced)

	// Publish event - the binding is already stored, so on publish
	// failure the session is still returned.
	evt := SessionCreatedEvent{
		OwnerID:   m.ownerID,
		Address:   acct.Address,
		CreatedAt: sess.CreatedAt,
		Replaced:  replaced,
	}
	if replaced {
		evt.PreviousAddress = prev.Address
	}
	if err := m.service.events.SessionCreated.Publish(ctx, evt); err != nil {
		if m.service.opts.eventErrorsFatal {
			genErr = &EventPublishError{EventName: "SessionCreated", Err: err}
			return sess, genErr
		}
		m.service.opts.safeEventPublishFailure("SessionCreated", err)
	}

	return sess, nil
}

// Messages lists the owner's inbox, newest first. Summaries are saved
// to the archive best-effort; a remote listing failure is reported, not
// papered over with archived copies.
func (m *ownerSession) Messages(ctx context.Context) ([]mailtm.MessageSummary, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "tempmail.messages",
		attribute.String("owner_id", m.ownerID),
	)
	start := time.Now()
	var listErr error
	var msgs []mailtm.MessageSummary
	defer func() {
		endSpan(listErr)
		m.service.otel.recordList(ctx, time.Since(start), len(msgs), listErr)
	}()

	unlock := m.lockOwner()
	defer unlock()

	sess, ok := m.active()
	if !ok {
		// No remote call for sessionless owners.
		listErr = ErrNoActiveSession
		return nil, listErr
	}

	release, err := m.acquireRemote(ctx)
	if err != nil {
		listErr = err
		return nil, listErr
	}
	msgs, err = m.service.mail.Messages(ctx, sess.Account)
	release()
	if err != nil {
		listErr = remoteError("messages", err)
		return nil, listErr
	}

	m.archiveSummaries(ctx, sess.Address, msgs)
	return msgs, nil
}

// archiveSummaries saves listing entries to the archive, best-effort.
func (m *ownerSession) archiveSummaries(ctx context.Context, address string, msgs []mailtm.MessageSummary) {
	if m.service.arch == nil {
		return
	}
	for _, msg := range msgs {
		err := m.service.arch.Save(ctx, archive.Message{
			ID:         msg.ID,
			Address:    address,
			From:       msg.From,
			Subject:    msg.Subject,
			Intro:      msg.Intro,
			IsRead:     msg.IsRead,
			ReceivedAt: msg.CreatedAt,
		})
		if err != nil {
			m.service.logger.Warn("archive save failed",
				"owner", m.ownerID,
				"message_id", msg.ID,
				"error", err)
			return
		}
	}
}

// Message fetches one message in full and marks it read. Archived full
// copies are served without a remote round trip; everything else goes
// to the remote service and is archived on the way back.
func (m *ownerSession) Message(ctx context.Context, messageID string) (mailtm.MessageDetail, error) {
	if err := m.checkAccess(); err != nil {
		return mailtm.MessageDetail{}, err
	}
	if err := validateMessageID(messageID); err != nil {
		return mailtm.MessageDetail{}, err
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "tempmail.message",
		attribute.String("owner_id", m.ownerID),
		attribute.String("message_id", messageID),
	)
	start := time.Now()
	var fetchErr error
	var fromArchive bool
	defer func() {
		endSpan(fetchErr)
		m.service.otel.recordFetch(ctx, time.Since(start), fromArchive, fetchErr)
	}()

	unlock := m.lockOwner()
	defer unlock()

	sess, ok := m.active()
	if !ok {
		fetchErr = ErrNoActiveSession
		return mailtm.MessageDetail{}, fetchErr
	}

	// Read-through: a previously archived full message needs no remote
	// call. Summary-only rows have no body and fall through.
	if m.service.arch != nil {
		if cached, err := m.service.arch.Get(ctx, sess.Address, messageID); err == nil &&
			(cached.Text != "" || cached.HTML != "") {
			fromArchive = true
			if err := m.service.arch.MarkRead(ctx, sess.Address, messageID); err != nil {
				m.service.logger.Warn("archive mark read failed",
					"message_id", messageID, "error", err)
			}
			return mailtm.MessageDetail{
				ID:              cached.ID,
				From:            cached.From,
				To:              cached.To,
				Subject:         cached.Subject,
				Intro:           cached.Intro,
				Text:            cached.Text,
				HTML:            cached.HTML,
				AttachmentCount: cached.AttachmentCount,
				IsRead:          true,
				CreatedAt:       cached.ReceivedAt,
			}, nil
		}
	}

	release, err := m.acquireRemote(ctx)
	if err != nil {
		fetchErr = err
		return mailtm.MessageDetail{}, fetchErr
	}
	detail, err := m.service.mail.Message(ctx, sess.Account, messageID)
	release()
	if err != nil {
		fetchErr = remoteError("message", err)
		return mailtm.MessageDetail{}, fetchErr
	}

	if m.service.arch != nil {
		if err := m.service.arch.Save(ctx, archive.Message{
			ID:              detail.ID,
			Address:         sess.Address,
			From:            detail.From,
			To:              detail.To,
			Subject:         detail.Subject,
			Intro:           detail.Intro,
			Text:            detail.Text,
			HTML:            detail.HTML,
			AttachmentCount: detail.AttachmentCount,
			IsRead:          true,
			ReceivedAt:      detail.CreatedAt,
		}); err != nil {
			m.service.logger.Warn("archive save failed",
				"message_id", detail.ID, "error", err)
		}
	}

	return *detail, nil
}

// DeleteMessage removes one message from the remote inbox and drops the
// archived copy.
func (m *ownerSession) DeleteMessage(ctx context.Context, messageID string) error {
	if err := m.checkAccess(); err != nil {
		return err
	}
	if err := validateMessageID(messageID); err != nil {
		return err
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "tempmail.delete_message",
		attribute.String("owner_id", m.ownerID),
		attribute.String("message_id", messageID),
	)
	start := time.Now()
	var delErr error
	defer func() {
		endSpan(delErr)
		m.service.otel.recordDelete(ctx, time.Since(start), "message", delErr)
	}()

	unlock := m.lockOwner()
	defer unlock()

	sess, ok := m.active()
	if !ok {
		delErr = ErrNoActiveSession
		return delErr
	}

	release, err := m.acquireRemote(ctx)
	if err != nil {
		delErr = err
		return delErr
	}
	err = m.service.mail.DeleteMessage(ctx, sess.Account, messageID)
	release()
	if err != nil {
		delErr = remoteError("delete message", err)
		return delErr
	}

	if m.service.arch != nil {
		if err := m.service.arch.Delete(ctx, sess.Address, messageID); err != nil {
			m.service.logger.Warn("archive delete failed",
				"message_id", messageID, "error", err)
		}
	}
	return nil
}

// DeleteAll destroys the owner's remote account and clears the binding.
//
// The local binding is cleared whether or not the remote delete
// succeeds: the user asked for the address to be gone, and keeping a
// binding to an account in unknown remote state would be worse than
// orphaning it. A remote failure is still reported so the caller knows
// the remote side may lag.
func (m *ownerSession) DeleteAll(ctx context.Context) error {
	if err := m.checkAccess(); err != nil {
		return err
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "tempmail.delete_all",
		attribute.String("owner_id", m.ownerID),
	)
	start := time.Now()
	var delErr error
	defer func() {
		endSpan(delErr)
		m.service.otel.recordDelete(ctx, time.Since(start), "account", delErr)
	}()

	unlock := m.lockOwner()
	defer unlock()

	sess, ok := m.active()
	if !ok {
		delErr = ErrNoActiveSession
		return delErr
	}

	var remoteErr error
	release, err := m.acquireRemote(ctx)
	if err != nil {
		delErr = err
		return delErr
	}
	remoteErr = m.service.mail.DeleteAccount(ctx, sess.Account)
	release()

	// Local cleanup happens regardless of the remote outcome.
	m.service.dir.Remove(m.ownerID)
	if m.service.arch != nil {
		if err := m.service.arch.Purge(ctx, sess.Address); err != nil {
			m.service.logger.Warn("archive purge failed",
				"address", sess.Address, "error", err)
		}
	}

	m.service.logger.Info("deleted session",
		"owner", m.ownerID,
		"address", sess.Address,
		"remote_deleted", remoteErr == nil)

	if err := m.service.events.SessionDeleted.Publish(ctx, SessionDeletedEvent{
		OwnerID:       m.ownerID,
		Address:       sess.Address,
		RemoteDeleted: remoteErr == nil,
		DeletedAt:     m.service.opts.clock(),
	}); err != nil {
		if m.service.opts.eventErrorsFatal && remoteErr == nil {
			delErr = &EventPublishError{EventName: "SessionDeleted", Err: err}
			return delErr
		}
		m.service.opts.safeEventPublishFailure("SessionDeleted", err)
	}

	if remoteErr != nil {
		delErr = remoteError("delete all", remoteErr)
		return delErr
	}
	return nil
}
