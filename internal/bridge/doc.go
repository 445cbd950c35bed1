// Package bridge mounts generated components into isolated JavaScript
// runtimes and synchronizes their state with the host.
//
// A mount owns three things: a goja runtime executing the component script
// against a document proxy built from the generated markup, a mailbox
// carrying STATE_UPDATE and COMMAND messages to the host, and the iframe
// document renderer a browser client embeds. The runtime sees only the
// capabilities the bridge injects: the state API (state, setState,
// mergeState), the document proxy, and the window.parent.postMessage shim.
//
// Ordering: initial state is seeded before the component script executes,
// and the script runs wrapped in a reinvocable initComponent function so
// host state pushes re-run the render logic. Library scripts (Tailwind,
// Chart.js) are included in the first document render only; the mounted
// frame reuses them across content updates.
package bridge
