// Package chathistory reads the conversation a student had with the AI
// tutor while building a node.
//
// Messages live in a PostgREST table (chat_messages). Node ids are stored
// with a prefix naming who created the node: "a-" for the student, "e-" for
// the AI. A lookup by bare id therefore matches both prefixes.
package chathistory
