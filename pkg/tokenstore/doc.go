// Package tokenstore holds pending signups between the signup request and its completion.
//
// A Store is a single-slot holder bound to one client context. Issue creates a fresh
// opaque token, stores only its hash next to the email and (optionally) the password,
// and returns the raw token so it can be mailed. Match validates an {email, token}
// pair without touching the record; Clear consumes it after the account is created.
//
//	kv, _ := tokenstore.NewKV("redis", tokenstore.KVConfig{Redis: rdb})
//	store := tokenstore.New(kv, clientID, tokenstore.WithTTL(24*time.Hour))
//
//	token, rec, err := store.Issue(ctx, "a@x.com", "pw123456")
//	...
//	rec, err = store.Match(ctx, "a@x.com", token)
//	if errors.Is(err, tokenstore.ErrTokenMismatch) {
//		// wrong token, wrong email, or expired
//	}
//
// Put overwrites unconditionally. Two racing signups in the same client context
// resolve as last-writer-wins.
package tokenstore
