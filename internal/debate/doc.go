// Package debate implements the multi-agent turn orchestration engine.
//
// A session runs a structured discussion between several independently
// configured model participants plus a moderator. The engine decides who
// speaks next, builds each speaker's instruction from the session history
// and the previous round's synopsis, and serializes all completion traffic
// so no two turns (and no turn and summary) ever run concurrently against
// the same session.
//
// # Round Lifecycle
//
// A round is one full cycle of moderator directive, participant turns in
// fixed order, and moderator close. When the last active participant has
// spoken, the engine materializes a Round record, generates a structured
// synopsis for it, and only then lets the moderator speak with that
// synopsis injected as context. The moderator's closing message opens the
// next round.
//
// # Usage
//
//	ctrl, err := debate.NewController(debate.ControllerOptions{
//		Topic:        "Choose a queueing backend",
//		Moderator:    mod,
//		Participants: []*debate.Participant{p1, p2},
//		Completer:    client,
//		Bus:          bus,
//	})
//	snap, err := ctrl.Start(ctx)
//	for snap.Session.Status == debate.StatusRunning {
//		snap, err = ctrl.Advance(ctx)
//	}
//
// # Thread Safety
//
// Controller is safe for concurrent use. An Advance call that arrives
// while a turn or summary is in flight is rejected without side effects.
package debate
