// Package tempmail binds chat-bot users to disposable email addresses
// backed by a Mail.tm-compatible remote service.
//
// Each owner holds at most one active address at a time. Generating a
// new address replaces the old binding; bindings expire after a
// configurable TTL and are evicted by a background sweeper. All mail
// operations (list, fetch, delete) are delegated to the remote service
// through a mailtm.Client.
//
// # Basic Usage
//
//	dir, _ := memory.New(24 * time.Hour)
//	svc, err := tempmail.NewService(
//	    tempmail.WithMailClient(mailtm.New()),
//	    tempmail.WithDirectory(dir),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Connect starts the expiry sweeper.
//	if err := svc.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close(ctx)
//
//	// Get a mailbox client for a user
//	mb := svc.Client("user123")
//
//	sess, err := mb.Generate(ctx)
//	msgs, err := mb.Messages(ctx)
//
// # Sessions and Expiry
//
// A session is the binding of one owner to one remote account. The
// directory treats entries older than the TTL as absent the moment they
// expire; the sweeper only reclaims the memory. Replacing an address
// leaves the previous remote account orphaned on the remote side, which
// the service itself expires.
//
// # Errors
//
// Operations return sentinel errors checkable with errors.Is:
// ErrNoActiveSession, ErrNotFound, ErrRemoteUnavailable,
// ErrInvalidMessageID. Category maps any returned error to the
// presenter-facing failure categories.
//
// # Events
//
// Session lifecycle notifications use the github.com/rbaliyan/event/v3
// library. Pass WithRedisClient or WithEventTransport to publish across
// processes; without either, events stay in-process:
//
//	svc.Events().SessionCreated.Subscribe(ctx, handler)
package tempmail
