// Package preflight provides readiness checks for the data files, directories,
// and network services ufpmap depends on.
//
// These checks run in two contexts:
//   - The render command calls RunAll before loading data. If any check fails
//     the run stops before touching the output directory.
//   - The CLI "ufpmap status" command runs the same checks plus the network
//     probes to display environment health.
package preflight
