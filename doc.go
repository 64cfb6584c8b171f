// Package readers manages the reader identity lifecycle: salted credential
// storage, activation by single-use token, and password-reset confirmation.
//
// Lifecycle:
//   - Readers are created pending, carrying a fresh activation token and no
//     activation timestamp. ActivateReaderHandler consumes the token and
//     stamps the record as activated; authentication refuses pending readers.
//   - InitializePasswordResetHandler stages a provisional credential next to
//     the live one. FinalizePasswordResetHandler promotes it only when the
//     matching reset token is presented; until then the old credential keeps
//     working.
//
// Notifications:
//   - Handlers never send mail. They hand a Notification (recipient, kind,
//     token or provisional secret) to a Notifier; the delivery transport is
//     the caller's concern.
//
// Activity sinks:
//   - ActivitySink receives best-effort audit events for registration,
//     activation, and password reset outcomes. Sinks run best-effort (errors
//     are logged) so they never block the underlying transition.
package readers
