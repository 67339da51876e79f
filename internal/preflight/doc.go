// Package preflight provides readiness checks for the directories and
// external programs scribe depends on.
//
// These checks run in two contexts:
//   - watch and run call RunAll at startup and log failures as warnings;
//     only an unusable input directory stops the process.
//   - scribe doctor prints every check, including the network probe of the
//     OpenAI-compatible endpoint when that backend is selected.
package preflight
