// Package api provides the REST API of IndexSync
// @title IndexSync API
// @version 1.0
// @description REST API for the sync status of IndexSync indexes and point lookups into them
// @contact.name API Support
// @contact.url https://github.com/goran-ethernal/IndexSync
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @basePath /api/v1
// @schemes http https
package api
