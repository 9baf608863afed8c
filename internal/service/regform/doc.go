// Package regform implements the registration form submission engine.
//
// A resolution pass walks the fields of a form in declaration order and, for
// each one, decides whether it is visible (conditional fields), whether the
// submitted value may be used (manager-only fields), and what canonical value
// ends up stored. The pass returns the full value set plus a diff against the
// previously stored values; persistence is left to the Repository.
//
// Resolver, Coercer and VisibilityEvaluator are pure and never touch storage.
// Service wires them to the repository, user directory, audit sink and
// notification dispatcher.
package regform
