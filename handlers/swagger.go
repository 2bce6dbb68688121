package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers the Swagger UI and the OpenAPI document.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(r *gin.Engine) {
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>docflow API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "docflow", "version": "v1.0.0", "description": "Document routing workflow" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Error": { "type": "object", "properties": { "success": {"type":"boolean"}, "error": {"type":"string"} } },
      "CreateDocument": { "type": "object", "required": ["title","description","receiverEmail"], "properties": {
        "title": {"type":"string"}, "description": {"type":"string"},
        "type": {"type":"string","enum":["Letter","Memo","Circular","Approval","Report"],"default":"Letter"},
        "priority": {"type":"string","enum":["Normal","Urgent","High"],"default":"Normal"},
        "receiverEmail": {"type":"string","format":"email"} } },
      "UpdateStatus": { "type": "object", "required": ["status"], "properties": {
        "status": {"type":"string","enum":["Pending","Accepted","Reviewed","Approved","Rejected"]},
        "comment": {"type":"string"}, "version": {"type":"integer"} } },
      "Forward": { "type": "object", "required": ["receiverEmail"], "properties": {
        "receiverEmail": {"type":"string","format":"email"}, "comment": {"type":"string"}, "version": {"type":"integer"} } }
    }
  },
  "paths": {
    "/api/auth/register": { "post": { "summary": "Register a local account", "responses": { "201": {"description":"created"}, "400": {"description":"validation"}, "409": {"description":"email exists"} } } },
    "/api/auth/login": { "post": { "summary": "Login with email and password", "responses": { "200": {"description":"access and refresh token"}, "401": {"description":"invalid credentials or unverified"} } } },
    "/api/auth/refresh": { "post": { "summary": "Rotate refresh token", "responses": { "200": {"description":"new tokens"}, "401": {"description":"invalid refresh token"} } } },
    "/api/auth/logout": { "post": { "summary": "Revoke refresh and access token", "responses": { "200": {"description":"logged out"} } } },
    "/api/auth/me": { "get": { "summary": "Current user", "security": [{"bearer": []}], "responses": { "200": {"description":"user"} } } },
    "/api/documents": {
      "get": { "summary": "Documents the caller sent, received or acted on", "security": [{"bearer": []}], "responses": { "200": {"description":"list"} } },
      "post": { "summary": "Create and route a document", "security": [{"bearer": []}],
        "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/CreateDocument"} } } },
        "responses": { "201": {"description":"created"}, "400": {"description":"validation"}, "404": {"description":"receiver not found"} } }
    },
    "/api/documents/inbox": { "get": { "summary": "Documents awaiting the caller (alias /received)", "security": [{"bearer": []}], "responses": { "200": {"description":"list"} } } },
    "/api/documents/sent": { "get": { "summary": "Documents the caller sent or acted on (alias /outbox)", "security": [{"bearer": []}], "responses": { "200": {"description":"list"} } } },
    "/api/documents/{id}": { "get": { "summary": "Document with resolved history", "security": [{"bearer": []}],
      "parameters": [{"name":"id","in":"path","required":true,"schema":{"type":"string"}}],
      "responses": { "200": {"description":"document"}, "403": {"description":"not a participant"}, "404": {"description":"not found"} } } },
    "/api/documents/{id}/status": { "put": { "summary": "Change status (current receiver only)", "security": [{"bearer": []}],
      "parameters": [{"name":"id","in":"path","required":true,"schema":{"type":"string"}}],
      "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/UpdateStatus"} } } },
      "responses": { "200": {"description":"updated"}, "400": {"description":"invalid status"}, "403": {"description":"not the receiver"}, "409": {"description":"stale version"} } } },
    "/api/documents/{id}/forward": { "put": { "summary": "Forward to another user (current receiver only)", "security": [{"bearer": []}],
      "parameters": [{"name":"id","in":"path","required":true,"schema":{"type":"string"}}],
      "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Forward"} } } },
      "responses": { "200": {"description":"forwarded"}, "400": {"description":"self forward"}, "403": {"description":"not the receiver"}, "404": {"description":"receiver not found"}, "409": {"description":"stale version"} } } },
    "/health": { "get": { "summary": "Liveness", "responses": { "200": {"description":"ok"} } } },
    "/ready": { "get": { "summary": "Readiness", "responses": { "200": {"description":"ready"}, "503": {"description":"not ready"} } } }
  }
}`
