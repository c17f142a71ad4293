// Package e2e holds the Ginkgo suite that runs the device scenarios.
//
// By default the suite starts the stub inventory servers in process and
// drives them with the HTML backend. Set DEVICECHECK_UI_URL (and usually
// DEVICECHECK_API_URL and DEVICECHECK_BROWSER) to run against a live
// deployment with a real browser instead.
package e2e
