// Package classroom is a client for the classroom REST API that backs the
// teacher dashboard.
//
// The API identifies teachers by their teacher number and keeps the login in
// a cookie. [Client.Login] returns a [Session] holding that cookie; calls on
// behalf of a teacher go through [Client.WithSession]:
//
//	sess, err := client.Login(ctx, "0001")
//	teacher := client.WithSession(sess.Cookie)
//	log, err := teacher.TreeLog(ctx, assignmentID, studentID, false)
//
// Every response is wrapped in a {"status", "data"} envelope which the
// client unwraps. Tree logs are cached per teacher, keyed by assignment and
// student.
package classroom
