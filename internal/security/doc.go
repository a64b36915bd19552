// Package security derives a posture report from resolved guard settings.
//
// The report is pure data: it never reads stores or clocks, so it can be
// logged at startup and compared across deployments.
package security
