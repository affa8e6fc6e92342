// Package docs holds the Swagger models and general API info for the gatekeeper API.
//
//	@title						Gatekeeper API
//	@version					1.0
//	@description				Session, identity and rate-limit gateway for NoteHub
//	@host						localhost:8080
//	@BasePath					/api/v1
//	@schemes					http https
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@tag.name					auth
//	@tag.description			Login, refresh and credential flows
//	@tag.name					users
//	@tag.description			Account registration and maintenance
//	@tag.name					health
//	@tag.description			Liveness and readiness checks
package docs
