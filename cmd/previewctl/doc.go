/*
Previewctl renders preview components from the command line.

Usage:

	previewctl render Card.tsx
	previewctl render --output json Card.tsx
	previewctl watch Card.tsx
	previewctl watch --remote Card.tsx
	previewctl remote Card.tsx
	previewctl modules

Render and watch run the pipeline in-process. Remote and the --remote flag
send the source to a preview server instead (PREVIEW_SERVER_URL or
--server).

Configuration comes from the same environment variables as the server, with
an optional TOML file passed via --config on top.
*/
package main
