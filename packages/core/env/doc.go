// Package env reads process environment settings for ackhttp.
//
// Values come from the OS environment, optionally seeded from a .env file
// in the working directory. Config values may reference variables with
// ${NAME} syntax, expanded by Expand. Command-line request inputs use the
// {{name}} templates of Resolver, which also reach the environment
// ({{$NAME}}) and a few generator functions such as {{uuid()}}.
package env
