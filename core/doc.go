// Package core contains the crosspost domain contracts, entities, and
// orchestration logic: token lifecycles, the text pipeline, and the publish
// dispatcher. Adapter packages (auth, providers, transport, store) depend on
// this package; core must not depend on them.
package core
